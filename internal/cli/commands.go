package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/jeffersonwarrior/eviscape/eviscape"
	"github.com/jeffersonwarrior/eviscape/internal/version"
)

// pageFlags adds --per-page and --page to a listing command.
type pageFlags struct {
	perPage int
	page    int
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.perPage, "per-page", 0, "Results per page (0 = API default)")
	cmd.Flags().IntVar(&p.page, "page", 1, "Page number")
}

func (p *pageFlags) value() eviscape.Page {
	return eviscape.Page{PerPage: p.perPage, Page: p.page}
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func parseIDs(whats []string, args []string) ([]int64, error) {
	ids := make([]int64, len(whats))
	for i, what := range whats {
		id, err := parseID(what, args[i])
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// call runs fn with the API client and the --token access token.
func (cli *CLI) call(cmd *cobra.Command, fn func(*eviscape.Client, *eviscape.Token) error) error {
	token, err := cli.token(cmd.Context())
	if err != nil {
		return err
	}
	client, err := cli.apiClient()
	if err != nil {
		return err
	}
	return fn(client, token)
}

func (cli *CLI) authCommand() *cobra.Command {
	var perms string

	cmd := &cobra.Command{
		Use:   "auth [name]",
		Short: "Authorize an access token and store it",
		Long: `auth walks through the OAuth flow: it prints the authorization URL, reads the
verifier from standard input and stores the access token under name (default:
the authorizing member's name).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.cfg.Validate(); err != nil {
				return err
			}
			client, err := cli.apiClient()
			if err != nil {
				return err
			}
			store, err := cli.tokenStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			reqTok, err := client.RequestToken(ctx, "oob")
			if err != nil {
				return err
			}
			authURL, err := client.AuthorizationURL(reqTok, perms)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Open this URL to authorize eviscape:\n\n  %s\n\nVerifier: ", authURL)

			verifier, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read verifier: %w", err)
			}
			accTok, err := client.AccessToken(ctx, reqTok, strings.TrimSpace(verifier))
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			} else {
				member, err := client.MemberByToken(ctx, accTok)
				if err != nil {
					return err
				}
				name = member.Name
			}
			if err := store.Save(ctx, name, accTok); err != nil {
				return err
			}
			log.WithField("name", name).Info("Access token stored")
			fmt.Fprintf(out, "\nUse it with --token %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&perms, "perms", eviscape.DefaultPerms, "Permissions to request (read, write)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored access tokens",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := cli.tokenStore()
				if err != nil {
					return err
				}
				tokens, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, st := range tokens {
					fmt.Fprintf(w, "%s\t%s\n", st.Name, st.UpdatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a stored access token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := cli.tokenStore()
				if err != nil {
					return err
				}
				return store.Delete(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Check that the --token access token is accepted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if cli.tokenName == "" {
					return eviscape.ErrTokenRequired
				}
				return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
					ok, err := c.IsAuthenticated(cmd.Context(), tok)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("token %q is not authorized", cli.tokenName)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "token %q is authorized\n", cli.tokenName)
					return nil
				})
			},
		},
	)
	return cmd
}

func (cli *CLI) membersCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Member operations"}

	var search pageFlags
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, _ *eviscape.Token) error {
				members, err := c.SearchMembers(cmd.Context(), args[0], search.value())
				if err != nil {
					return err
				}
				return printMembers(cmd.OutOrStdout(), members)
			})
		},
	}
	search.register(searchCmd)

	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Show the member owning the --token access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				member, err := c.MemberByToken(cmd.Context(), tok)
				if err != nil {
					return err
				}
				return printMembers(cmd.OutOrStdout(), []*eviscape.Member{member})
			})
		},
	}

	cmd.AddCommand(searchCmd, meCmd)
	return cmd
}

func (cli *CLI) nodesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "nodes", Short: "Node operations"}

	getCmd := &cobra.Command{
		Use:   "get <node-id>",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("node", args[0])
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				node, err := c.Node(cmd.Context(), tok, id)
				if err != nil {
					return err
				}
				return printNodes(cmd.OutOrStdout(), []*eviscape.Node{node})
			})
		},
	}

	var search pageFlags
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search public nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, _ *eviscape.Token) error {
				nodes, err := c.SearchNodes(cmd.Context(), args[0], search.value())
				if err != nil {
					return err
				}
				return printNodes(cmd.OutOrStdout(), nodes)
			})
		},
	}
	search.register(searchCmd)

	var member pageFlags
	var perms string
	memberCmd := &cobra.Command{
		Use:   "member <member-name>",
		Short: "List the nodes a member has permissions on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				nodes, err := c.NodesForMember(cmd.Context(), tok, args[0], perms, member.value())
				if err != nil {
					return err
				}
				return printNodes(cmd.OutOrStdout(), nodes)
			})
		},
	}
	member.register(memberCmd)
	memberCmd.Flags().StringVar(&perms, "perms", eviscape.DefaultPerms, "Permission level")

	var created pageFlags
	createdCmd := &cobra.Command{
		Use:   "created <member-name>",
		Short: "List the nodes created by a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				nodes, err := c.NodesCreatedBy(cmd.Context(), tok, args[0], created.value())
				if err != nil {
					return err
				}
				return printNodes(cmd.OutOrStdout(), nodes)
			})
		},
	}
	created.register(createdCmd)

	cmd.AddCommand(getCmd, searchCmd, memberCmd, createdCmd,
		cli.nodeGraphCommand("listeners", "List the listeners of a node", (*eviscape.Client).Listeners),
		cli.nodeGraphCommand("speakers", "List the nodes a node listens to", (*eviscape.Client).Speakers),
	)
	return cmd
}

type nodeGraphFunc func(*eviscape.Client, context.Context, *eviscape.Token, int64, eviscape.Page) ([]*eviscape.Node, error)

func (cli *CLI) nodeGraphCommand(name, short string, fn nodeGraphFunc) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   name + " <node-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("node", args[0])
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				nodes, err := fn(c, cmd.Context(), tok, id, page.value())
				if err != nil {
					return err
				}
				return printNodes(cmd.OutOrStdout(), nodes)
			})
		},
	}
	page.register(cmd)
	return cmd
}

func (cli *CLI) evisCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "evis", Short: "Evis operations"}

	var latest pageFlags
	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "List the latest evis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.LatestEvis(cmd.Context(), tok, latest.value())
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), list)
			})
		},
	}
	latest.register(latestCmd)

	getCmd := &cobra.Command{
		Use:   "get <node-id> <evis-id>",
		Short: "Show an evis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"node", "evis"}, args)
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				e, err := c.Evis(cmd.Context(), tok, ids[0], ids[1])
				if err != nil {
					return err
				}
				if err := printEvis(cmd.OutOrStdout(), []*eviscape.Evis{e}); err != nil {
					return err
				}
				if e.Body != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", e.Body)
				}
				return nil
			})
		},
	}

	var files pageFlags
	filesCmd := &cobra.Command{
		Use:   "files <node-id> <evis-id>",
		Short: "List the files of an evis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"node", "evis"}, args)
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.EvisFiles(cmd.Context(), tok, ids[0], ids[1], files.value())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, f := range list {
					fmt.Fprintf(w, "%d\t%s\t%s\n", f.ID, f.Title, f.Permalink)
				}
				return w.Flush()
			})
		},
	}
	files.register(filesCmd)

	var search pageFlags
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search evis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.SearchEvis(cmd.Context(), tok, args[0], search.value())
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), list)
			})
		},
	}
	search.register(searchCmd)

	var sent pageFlags
	sentCmd := &cobra.Command{
		Use:   "sent <node-id>",
		Short: "List the evis posted by a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("node", args[0])
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.SentEvis(cmd.Context(), tok, id, sent.value())
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), list)
			})
		},
	}
	sent.register(sentCmd)

	var received pageFlags
	receivedCmd := &cobra.Command{
		Use:   "received <member-id> <node-id>",
		Short: "List the evis received by a member's node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"member", "node"}, args)
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.ReceivedEvis(cmd.Context(), tok, ids[0], ids[1], received.value())
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), list)
			})
		},
	}
	received.register(receivedCmd)

	var timeline pageFlags
	timelineCmd := &cobra.Command{
		Use:   "timeline <member-id> <node-id>",
		Short: "Show a member's timeline (needs --token)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"member", "node"}, args)
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				list, err := c.Timeline(cmd.Context(), tok, ids[0], ids[1], timeline.value())
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), list)
			})
		},
	}
	timeline.register(timelineCmd)

	var post eviscape.EvisPost
	postCmd := &cobra.Command{
		Use:   "post <member-id> <node-id> <subject>",
		Short: "Post an evis (needs --token)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"member", "node"}, args)
			if err != nil {
				return err
			}
			post.MemberID, post.NodeID, post.Subject = ids[0], ids[1], args[2]
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				e, err := c.PostEvis(cmd.Context(), tok, post)
				if err != nil {
					return err
				}
				return printEvis(cmd.OutOrStdout(), []*eviscape.Evis{e})
			})
		},
	}
	postCmd.Flags().StringVar(&post.Body, "body", "", "Evis body")
	postCmd.Flags().StringVar(&post.Type, "type", "text", "Evis type")
	postCmd.Flags().StringSliceVar(&post.Tags, "tags", nil, "Comma-separated tags")
	postCmd.Flags().BoolVar(&post.Draft, "draft", false, "Save as draft")

	cmd.AddCommand(latestCmd, getCmd, filesCmd, searchCmd, sentCmd, receivedCmd, timelineCmd, postCmd)
	return cmd
}

func (cli *CLI) commentsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "comments", Short: "Comment operations"}

	var list pageFlags
	listCmd := &cobra.Command{
		Use:   "list <node-id> <evis-id>",
		Short: "List the comments of an evis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"node", "evis"}, args)
			if err != nil {
				return err
			}
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				comments, err := c.Comments(cmd.Context(), tok, ids[0], ids[1], list.value())
				if err != nil {
					return err
				}
				return printComments(cmd.OutOrStdout(), comments)
			})
		},
	}
	list.register(listCmd)

	postCmd := &cobra.Command{
		Use:   "post <node-id> <evis-id> <member-id> <text>...",
		Short: "Comment on an evis (needs --token)",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs([]string{"node", "evis", "member"}, args)
			if err != nil {
				return err
			}
			body := strings.Join(args[3:], " ")
			return cli.call(cmd, func(c *eviscape.Client, tok *eviscape.Token) error {
				comment, err := c.PostComment(cmd.Context(), tok, ids[0], ids[1], ids[2], body)
				if err != nil {
					return err
				}
				return printComments(cmd.OutOrStdout(), []*eviscape.Comment{comment})
			})
		},
	}

	cmd.AddCommand(listCmd, postCmd)
	return cmd
}

func (cli *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eviscape version %s\n", version.Version())
		},
	}
}

func printMembers(out io.Writer, members []*eviscape.Member) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, m.FullName)
	}
	return w.Flush()
}

func printNodes(out io.Writer, nodes []*eviscape.Node) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, n := range nodes {
		fmt.Fprintf(w, "%d\t%s\t%d listeners\t%s\n", n.ID, n.Name, n.ListenerCount, n.Permalink)
	}
	return w.Flush()
}

func printEvis(out io.Writer, list []*eviscape.Evis) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d comments\t%s\n", e.ID, formatDate(e.InsertDate), e.Subject, e.CommentCount, e.Permalink)
	}
	return w.Flush()
}

func printComments(out io.Writer, comments []*eviscape.Comment) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range comments {
		author := c.PenName
		if author == "" {
			author = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, formatDate(c.InsertDate), author, c.Body)
	}
	return w.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
