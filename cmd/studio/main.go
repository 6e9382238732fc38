// Command studio is a terminal companion for the forms API: it signs in,
// lists a workspace's forms, opens one through the authorization gate, and
// prints its response table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"formloom/api/internal/editor"
	"formloom/api/internal/form"
	"formloom/api/internal/formclient"
)

type printNotifier struct{}

func (printNotifier) MutationStarted(label string)   { fmt.Printf("%s...\n", label) }
func (printNotifier) MutationSucceeded(label string) { fmt.Printf("%s done\n", label) }
func (printNotifier) MutationFailed(label string, err error) {
	fmt.Printf("%s failed: %v\n", label, err)
}

type printNavigator struct{}

func (printNavigator) OpenEditor(formID string) { fmt.Printf("editing %s\n", formID) }
func (printNavigator) OpenDashboard()           { fmt.Println("back to dashboard") }

func main() {
	apiURL := flag.String("api", envOr("FORMLOOM_API_URL", "http://localhost:8788"), "forms API base URL")
	email := flag.String("email", os.Getenv("FORMLOOM_EMAIL"), "account email (empty for anonymous)")
	password := flag.String("password", os.Getenv("FORMLOOM_PASSWORD"), "account password")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := formclient.New(*apiURL)
	if *email != "" {
		if _, err := client.SignIn(ctx, *email, *password); err != nil {
			log.Fatalf("sign in: %v", err)
		}
	}

	switch args[0] {
	case "list":
		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		listForms(ctx, client, query)
	case "open":
		if len(args) < 2 {
			usage()
		}
		openForm(ctx, client, args[1])
	case "responses":
		if len(args) < 2 {
			usage()
		}
		printResponses(ctx, client, args[1])
	case "publish":
		title := ""
		if len(args) > 1 {
			title = strings.Join(args[1:], " ")
		}
		publishForm(ctx, client, title)
	case "sidebar":
		if len(args) < 2 {
			usage()
		}
		toggleSidebar(ctx, client, args[1])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: studio [flags] <command>

commands:
  list [query]        list your forms, optionally filtered by title
  open <form-id>      open a form through the authorization gate
  responses <form-id> print the response table for a form
  publish [title]     publish a new form and open its editor
  sidebar on|off      persist the dashboard sidebar preference`)
	os.Exit(2)
}

func listForms(ctx context.Context, client *formclient.Client, query string) {
	items, err := client.ListForms(ctx, query)
	if err != nil {
		log.Fatalf("list forms: %v", err)
	}
	if len(items) == 0 {
		fmt.Println("no forms")
		return
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tPUBLIC\tLOCKED")
	for _, item := range items {
		fmt.Fprintf(writer, "%s\t%s\t%t\t%t\n",
			item.ID,
			form.DisplayTitle(item.Title),
			item.Options.PublicResponses,
			item.Options.LockedResponses,
		)
	}
	writer.Flush()
}

func openForm(ctx context.Context, client *formclient.Client, formID string) {
	state := client.Form(formID).Load(ctx)
	subject := client.Subject(ctx)

	switch editor.Decide(state, subject) {
	case editor.DecisionLoading:
		fmt.Println("still loading")
		return
	case editor.DecisionUnavailable:
		fmt.Printf("form unavailable: %v\n", state.Err)
		return
	case editor.DecisionUnauthorized:
		fmt.Println("you don't own this form")
		return
	}

	draft := editor.NewDraft()
	syncer := editor.NewSyncer(draft)
	syncer.Observe(formID, state)

	snapshot := draft.Snapshot()
	fmt.Printf("title:   %s\n", form.DisplayTitle(snapshot.Title))
	fmt.Printf("blocks:  %d\n", len(snapshot.Blocks))
	fmt.Printf("public:  %t\n", snapshot.Options.PublicResponses)
	fmt.Printf("locked:  %t\n", snapshot.Options.LockedResponses)
}

func printResponses(ctx context.Context, client *formclient.Client, formID string) {
	state := client.Responses(formID).Load(ctx)
	table := editor.BuildTable(state)
	if table == nil {
		log.Fatalf("responses unavailable: %v", state.Err)
	}
	if table.Empty {
		fmt.Println("no responses yet")
		return
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, strings.Join(table.Columns, "\t"))
	for _, row := range table.Rows {
		fmt.Fprintln(writer, strings.Join(row, "\t"))
	}
	writer.Flush()
}

func publishForm(ctx context.Context, client *formclient.Client, title string) {
	draft := editor.NewDraft()
	draft.SetTitle(title)

	orchestrator := editor.NewOrchestrator(client, printNotifier{}, printNavigator{})
	created, err := orchestrator.Publish(ctx, draft)
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
	fmt.Printf("share link: %s\n", created.ViewformURL)
}

func toggleSidebar(ctx context.Context, client *formclient.Client, state string) {
	shown := state == "on"
	if !shown && state != "off" {
		usage()
	}
	if err := client.SetSidebarShown(ctx, shown); err != nil {
		log.Fatalf("set sidebar: %v", err)
	}
	fmt.Printf("sidebar %s\n", state)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
