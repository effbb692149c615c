package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/internal/logger"
	"github.com/tendant/simple-media/pkg/mediarepo"
	"github.com/tendant/simple-media/pkg/mediarepo/config"
)

// cli carries what the commands share. open is replaced in tests.
type cli struct {
	out        io.Writer
	configFile string
	verbose    bool
	open       func(ctx context.Context, c *cli) (*config.Runtime, error)
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, open: openRuntime}
}

// openRuntime builds the repository from the environment and an optional
// config file. In-memory stores are bootstrapped right away since nothing
// survives the process.
func openRuntime(ctx context.Context, c *cli) (*config.Runtime, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat, os.Stderr)

	rt, err := cfg.Build(ctx, log)
	if err != nil {
		return nil, err
	}
	if cfg.StoreType == config.StoreMemory {
		if _, err := rt.Bootstrapper.Initialize(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (c *cli) loadConfig() (*config.ServerConfig, error) {
	opts := []config.Option{config.WithEnv()}
	if c.configFile != "" {
		opts = append(opts, config.WithConfigFile(c.configFile))
	}
	return config.Load(opts...)
}

func (c *cli) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *config.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := c.open(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func NewRootCommand(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediactl",
		Short: "Media repository administration",
		Long: `Command line client for the media repository.

Connection settings are read from the environment (STORE_TYPE, DATABASE_URL,
BINARY_STORE, ADMIN_USERNAME, ADMIN_PASSWORD, ...), from a .env file in the
current directory and from an optional config file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(c.newInitCommand())
	rootCmd.AddCommand(c.newPutCommand())
	rootCmd.AddCommand(c.newGetCommand())
	rootCmd.AddCommand(c.newListCommand())
	rootCmd.AddCommand(c.newDeleteCommand())
	rootCmd.AddCommand(c.newInfoCommand())
	rootCmd.AddCommand(c.newPingCommand())

	return rootCmd
}

func (c *cli) newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the content store schema and taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				done, err := rt.Bootstrapper.Initialize(ctx)
				if err != nil {
					return err
				}
				if done {
					fmt.Fprintln(c.out, "Content store initialized")
				} else {
					fmt.Fprintln(c.out, "Content store already initialized")
				}
				return nil
			})
		},
	}
}

func (c *cli) newPutCommand() *cobra.Command {
	var name, mimeType, encoding, user string
	var tags []string
	var replace bool

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a file as a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if name == "" {
				name = baseName(args[0])
			}
			res, err := mediarepo.ParseResource(name, mimeType, encoding, data, tags, user)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				store := rt.Repository.Create
				if replace {
					store = rt.Repository.CreateOrReplace
				}
				if err := store(ctx, res); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Stored %s (%d bytes)\n", mediarepo.FileNodePathForResource(res), len(data))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "resource name (default: file name)")
	cmd.Flags().StringVarP(&mimeType, "mime-type", "m", "", "mime type of the file")
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", "character encoding (UTF-8 or UTF-16)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag, repeatable or comma separated")
	cmd.Flags().StringVarP(&user, "user", "u", "", "creating user")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing resource")
	_ = cmd.MarkFlagRequired("mime-type")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) newGetCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <mime-type> <name>",
		Short: "Download the payload of a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := mediarepo.ParseMimeType(args[0])
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				res, err := rt.Repository.Get(ctx, mt, args[1])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = c.out.Write(res.Data)
					return err
				}
				return os.WriteFile(output, res.Data, 0o644)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (c *cli) newListCommand() *cobra.Command {
	var mimeType, category, tag string
	var long bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				if long {
					resources, err := listResources(ctx, rt.Repository, mimeType, category, tag)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "PATH\tSIZE\tTAGS\tCREATED BY\tLAST MODIFIED")
					for _, res := range resources {
						fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
							mediarepo.FileNodePathForResource(res), res.FileSizeInBytes,
							strings.Join(res.Tags, ","), res.CreatedByUser,
							mediarepo.FormatTimestamp(res.LastModifiedDate))
					}
					return w.Flush()
				}

				paths, err := listPaths(ctx, rt.Repository, mimeType, category, tag)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(c.out, p)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mimeType, "mime-type", "m", "", "filter by mime type")
	cmd.Flags().StringVar(&category, "category", "", "filter by category (image, doc, video, other)")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "filter by tag")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show metadata")
	cmd.MarkFlagsMutuallyExclusive("mime-type", "category", "tag")
	return cmd
}

func listPaths(ctx context.Context, repo mediarepo.Repository, mimeType, category, tag string) ([]string, error) {
	switch {
	case mimeType != "":
		mt, err := mediarepo.ParseMimeType(mimeType)
		if err != nil {
			return nil, err
		}
		return repo.ListFilePathsByMimeType(ctx, mt)
	case category != "":
		c, err := mediarepo.ParseCategoryType(category)
		if err != nil {
			return nil, err
		}
		return repo.ListFilePathsByCategory(ctx, c)
	case tag != "":
		return repo.ListFilePathsByTag(ctx, tag)
	default:
		return repo.ListAllFilePaths(ctx)
	}
}

func listResources(ctx context.Context, repo mediarepo.Repository, mimeType, category, tag string) ([]mediarepo.Resource, error) {
	switch {
	case mimeType != "":
		mt, err := mediarepo.ParseMimeType(mimeType)
		if err != nil {
			return nil, err
		}
		return repo.GetByMimeType(ctx, mt)
	case category != "":
		c, err := mediarepo.ParseCategoryType(category)
		if err != nil {
			return nil, err
		}
		return repo.GetByCategory(ctx, c)
	case tag != "":
		return repo.GetByTag(ctx, tag)
	default:
		return repo.GetAll(ctx)
	}
}

func (c *cli) newDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <mime-type> <name>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := mediarepo.ParseMimeType(args[0])
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				err := rt.Repository.Delete(ctx, mt, args[1])
				if force && errors.Is(err, mediarepo.ErrResourceNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Deleted %s\n", mediarepo.FileNodePathForMimeType(mt, args[1]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore missing resources")
	return cmd
}

func (c *cli) newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <mime-type> <name>",
		Short: "Show the metadata of a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := mediarepo.ParseMimeType(args[0])
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *config.Runtime) error {
				res, err := rt.Repository.Get(ctx, mt, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, res.String())
				return nil
			})
		},
	}
}

func (c *cli) newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured content store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := cfg.Ping(ctx); err != nil {
				return fmt.Errorf("%s store unreachable: %w", cfg.StoreType, err)
			}
			fmt.Fprintf(c.out, "%s store reachable\n", cfg.StoreType)
			return nil
		},
	}
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}
