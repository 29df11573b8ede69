package service

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"dblog/app/client"
	"dblog/app/config"
	"dblog/app/models"
	"dblog/app/services"
	"dblog/app/wallet"

	"go.uber.org/zap"
)

// HandlePostCommand runs the sync client against the node at DBLOG_RPC_URL and
// returns an exit code.
func HandlePostCommand(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) int {
	if len(args) < 1 || args[0] == "help" {
		printPostHelp()
		if len(args) < 1 {
			osExit(1)
			return 1
		}
		return 0
	}

	svc, err := newRemotePostService(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to set up client: %v\n", err)
		return 1
	}

	switch args[0] {
	case "list":
		return listPosts(ctx, svc)
	case "get":
		if len(args) < 2 {
			fmt.Println("Error: post id required")
			return 1
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Printf("Invalid post id: %s\n", args[1])
			return 1
		}
		return getPost(ctx, svc, id)
	case "create":
		return writePost(ctx, svc, 0, args[1:])
	case "update":
		if len(args) < 2 {
			fmt.Println("Error: post id required")
			return 1
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Printf("Invalid post id: %s\n", args[1])
			return 1
		}
		return writePost(ctx, svc, id, args[2:])
	default:
		fmt.Printf("Unknown post command: %s\n\n", args[0])
		printPostHelp()
		return 1
	}
}

func printPostHelp() {
	helpText := `Usage: dblog post <command> [options]

Commands:
  list                                        List registry posts
  get <id>                                    Show a post with its body
  create --title <t> (--content <c> | --content-file <f>) [--cover <image>]
                                              Store a body and register it
  update <id> --title <t> (--content <c> | --content-file <f>) [--cover <image>] [--draft]
                                              Store a new body and commit it to post <id>
  help                                        Display this help message

Writes are signed with the key in DBLOG_KEY_FILE and sent to DBLOG_RPC_URL.
`
	fmt.Println(helpText)
}

func newRemotePostService(cfg *config.Config, logger *zap.Logger) (*services.PostService, error) {
	c, err := client.New(cfg.Client.RPCURL, client.WithLogger(logger.Named("rpc")))
	if err != nil {
		return nil, err
	}
	dial := func(n wallet.Network) (wallet.Backend, error) {
		return client.New(n.RPCURL, client.WithLogger(logger.Named("rpc")))
	}
	w, err := loadServerWallet(cfg, dial, logger.Named("wallet"))
	if err != nil {
		return nil, err
	}
	return services.NewPostService(w, c, c, services.Config{
		ConfirmTimeout: cfg.Client.ConfirmTimeout,
		GatewayURL:     cfg.Client.GatewayURL,
		ValidateBodies: cfg.Client.ValidateBodies,
	}, logger.Named("posts")), nil
}

func listPosts(ctx context.Context, svc *services.PostService) int {
	posts, err := svc.ListPosts(ctx)
	if err != nil {
		fmt.Printf("Failed to list posts: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPUBLISHED\tAUTHOR\tUPDATED")
	for _, p := range posts {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%s\n", p.ID, p.Title, p.Published, p.Author, p.UpdatedAt.Format(time.RFC3339))
	}
	tw.Flush()
	return 0
}

func getPost(ctx context.Context, svc *services.PostService, id int64) int {
	view, err := svc.GetPost(ctx, id)
	if view != nil {
		printJSON(view)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

// writePost creates a post when id is 0 and updates post id otherwise.
func writePost(ctx context.Context, svc *services.PostService, id int64, args []string) int {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	contentFile := fs.String("content-file", "", "read the post body from a file")
	cover := fs.String("cover", "", "cover image file to upload")
	draft := fs.Bool("draft", false, "unpublish the post (update only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	body := *content
	if *contentFile != "" {
		data, err := os.ReadFile(*contentFile)
		if err != nil {
			fmt.Printf("Failed to read content file: %v\n", err)
			return 1
		}
		body = string(data)
	}

	coverID := ""
	if *cover != "" {
		data, err := os.ReadFile(*cover)
		if err != nil {
			fmt.Printf("Failed to read cover image: %v\n", err)
			return 1
		}
		coverID, err = svc.UploadCoverImage(ctx, data)
		if err != nil {
			fmt.Printf("Failed to upload cover image: %v\n", err)
			return 1
		}
		fmt.Printf("Uploaded cover image %s\n", coverID)
	}

	var post *models.Post
	var err error
	if id == 0 {
		post, err = svc.CreatePost(ctx, *title, body, coverID)
	} else {
		post, err = svc.UpdatePost(ctx, id, *title, body, coverID, !*draft)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		if errors.Is(err, services.ErrConfirmationTimeout) {
			fmt.Println("Check 'dblog post list' before retrying.")
		}
		return 1
	}
	printJSON(post)
	return 0
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
