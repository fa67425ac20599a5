package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/nonsonwune/sqlagent/config"
	"github.com/nonsonwune/sqlagent/importer"
	"github.com/nonsonwune/sqlagent/jira"
	"github.com/nonsonwune/sqlagent/llm"
	"github.com/nonsonwune/sqlagent/migrations"
	"github.com/nonsonwune/sqlagent/nlagent"
	"github.com/nonsonwune/sqlagent/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	var db nlagent.Querier
	var st *store.Store
	if cfg.Database.Configured() {
		st, err = store.Open(cfg.Database)
		if err != nil {
			log.Fatal(err)
		}
		defer st.Close()

		if err := migrations.VerifySchema(st.DB()); err != nil {
			log.Printf("Warning: schema check failed: %v", err)
		}
		db = st
	} else {
		color.Yellow("Database not configured, using the demo dataset.")
		db = store.NewMock()
	}

	provider := llm.Select(ctx, cfg, nil)

	var issues *jira.Client
	var contexts nlagent.ContextSource
	if cfg.Jira.Configured() {
		issues = jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken)
		contexts = jira.NewContextExtractor(issues, provider)
	}

	engine := nlagent.New(db, provider, contexts, nil)

	for {
		displayMenu()
		choice := readChoice()

		switch choice {
		case "1":
			askQuestion(ctx, engine, issues)
		case "2":
			previewSQL(ctx, engine)
		case "3":
			browseSchema(ctx, db)
		case "4":
			listIssues(ctx, issues)
		case "5":
			extractIssueContext(ctx, contexts)
		case "6":
			handleImport(ctx, st)
		case "7":
			handleInitSchema(st)
		case "8":
			color.Green("Thank you for using the SQL Assistant!")
			return
		default:
			color.Red("Invalid choice. Please try again.")
		}
	}
}

func displayMenu() {
	color.Cyan("\n=== Natural Language SQL Assistant ===")
	fmt.Println("1. Ask a Question")
	fmt.Println("2. Preview SQL Without Running It")
	fmt.Println("3. Browse Database Schema")
	fmt.Println("4. List Jira Issues")
	fmt.Println("5. Extract Context From a Jira Issue")
	fmt.Println("6. Import CSV Data")
	fmt.Println("7. Initialize Demo Schema")
	fmt.Println("8. Exit")
	fmt.Print("\nEnter your choice (1-8): ")
}

func askQuestion(ctx context.Context, engine *nlagent.Engine, issues *jira.Client) {
	fmt.Print("Enter your question: ")
	question := readString()
	if question == "" {
		color.Red("A question is required.")
		return
	}

	var issueKey string
	if issues != nil {
		fmt.Print("Jira issue key for context (optional): ")
		issueKey = readString()
	}

	fmt.Println("\nThinking...")
	resp, err := engine.Query(ctx, nlagent.Request{Question: question, IssueKey: issueKey})
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	color.Yellow("\nGenerated SQL:")
	fmt.Println(resp.SQL)
	if resp.IssueContext != "" {
		color.Yellow("\nIssue Context:")
		fmt.Println(resp.IssueContext)
	}

	renderResults(resp.Results)
	fmt.Printf("\n%d rows in %.2f ms\n", resp.RowCount, resp.ExecutionTimeMS)

	color.Yellow("\nExplanation:")
	fmt.Println(resp.Explanation)
}

func previewSQL(ctx context.Context, engine *nlagent.Engine) {
	fmt.Print("Enter your question: ")
	question := readString()
	if question == "" {
		color.Red("A question is required.")
		return
	}

	out, err := engine.Explain(ctx, nlagent.Request{Question: question})
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	color.Yellow("\nGenerated SQL:")
	fmt.Println(out.SQL)
	color.Yellow("\nExplanation:")
	fmt.Println(out.Explanation)
}

func browseSchema(ctx context.Context, db nlagent.Querier) {
	schema, err := db.Schema(ctx)
	if err != nil {
		color.Red("Error reading schema: %v", err)
		return
	}

	color.Yellow("\nDatabase Schema")
	fmt.Println(schema.Describe())
}

func listIssues(ctx context.Context, issues *jira.Client) {
	if issues == nil {
		color.Red("Jira is not configured. Set JIRA_URL, JIRA_USER_EMAIL and JIRA_API_TOKEN.")
		return
	}

	fmt.Print("Project key (optional): ")
	project := readString()
	fmt.Print("Status filter (optional): ")
	status := readString()

	found, err := issues.SearchIssues(ctx, project, status, 10)
	if err != nil {
		color.Red("Error searching issues: %v", err)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Status", "Priority", "Summary"})
	for _, issue := range found {
		table.Append([]string{
			issue.Key,
			issue.IssueType,
			issue.Status,
			issue.Priority,
			issue.Summary,
		})
	}
	table.Render()
}

func extractIssueContext(ctx context.Context, contexts nlagent.ContextSource) {
	if contexts == nil {
		color.Red("Jira is not configured. Set JIRA_URL, JIRA_USER_EMAIL and JIRA_API_TOKEN.")
		return
	}

	fmt.Print("Enter the issue key (e.g. SALES-42): ")
	key := readString()
	if key == "" {
		color.Red("An issue key is required.")
		return
	}

	out, err := contexts.ExtractContext(ctx, key)
	if err != nil {
		color.Red("Error extracting context: %v", err)
		return
	}

	color.Yellow("\nContext for %s:", key)
	fmt.Println(out)
}

func handleImport(ctx context.Context, st *store.Store) {
	if st == nil {
		color.Red("Import requires a configured database.")
		return
	}

	fmt.Print("Enter the CSV file path: ")
	filename := readString()

	fmt.Print("Enter the destination table: ")
	table := readString()

	workerCount := importer.DefaultWorkerCount
	if env := os.Getenv("WORKER_COUNT"); env != "" {
		if count, err := strconv.Atoi(env); err == nil && count > 0 {
			workerCount = count
		}
	}

	fmt.Printf("\nReady to import %s into %s using %d workers\n", filename, table, workerCount)
	fmt.Print("Proceed with import? (y/n): ")
	if strings.ToLower(readString()) != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	file, err := os.Open(filename)
	if err != nil {
		color.Red("Error opening file: %v", err)
		return
	}
	defer file.Close()

	cfg := importer.ImportConfig{
		Table:       table,
		BatchSize:   importer.DefaultBatchSize,
		WorkerCount: workerCount,
	}
	if err := importer.ImportData(ctx, st.DB(), cfg, csv.NewReader(file)); err != nil {
		color.Red("Error importing data: %v", err)
	} else {
		color.Green("Import completed successfully!")
	}
}

func handleInitSchema(st *store.Store) {
	if st == nil {
		color.Red("Schema initialization requires a configured database.")
		return
	}

	if err := migrations.InitSchema(st.DB()); err != nil {
		color.Red("Error initializing schema: %v", err)
		return
	}
	color.Green("Demo schema is ready.")
}

func renderResults(results []map[string]any) {
	if len(results) == 0 {
		fmt.Println("\n(no rows)")
		return
	}

	headers := make([]string, 0, len(results[0]))
	for col := range results[0] {
		headers = append(headers, col)
	}
	sort.Strings(headers)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
	for _, row := range results {
		line := make([]string, len(headers))
		for i, col := range headers {
			line[i] = formatValue(row[col])
		}
		table.Append(line)
	}
	table.Render()
}

func formatValue(v any) string {
	if v == nil {
		return "N/A"
	}
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func readChoice() string {
	var input string
	fmt.Scanln(&input)
	return strings.TrimSpace(input)
}

func readString() string {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}
