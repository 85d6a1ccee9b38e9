package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"planmyday/internal/auth"
	"planmyday/internal/cardstore"
	"planmyday/internal/dropzone"
	"planmyday/internal/task"
	"planmyday/internal/taskapi"
	"planmyday/internal/usercfg"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// card command flags
var (
	listColumn      string
	addColumn       string
	addDuration     int
	addImportance   string
	addTime         string
	moveBefore      string
	rmYes           bool
	generatePrompts []string
	archiveKeepOpen bool
)

func addCardCommands(root *cobra.Command) {
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cards by column",
		Example: "  planmyday list\n  planmyday list --column doing",
		Args:    cobra.NoArgs,
		Run:     runList,
	}
	listCmd.Flags().StringVarP(&listColumn, "column", "c", "", "Only show this column (backlog, todo, doing, done)")

	addCmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a card",
		Long:  "Add a card. Without a title argument the fields are asked for interactively.",
		Example: `  planmyday add "Write report" --duration 60 --importance high --time 9:30
  planmyday add`,
		Args: cobra.MaximumNArgs(1),
		Run:  runAdd,
	}
	addCmd.Flags().StringVarP(&addColumn, "column", "c", "", "Column for the new card (default from config)")
	addCmd.Flags().IntVarP(&addDuration, "duration", "d", task.DefaultDuration, "Duration in minutes")
	addCmd.Flags().StringVarP(&addImportance, "importance", "i", string(task.DefaultImportance), "Importance: low, medium or high")
	addCmd.Flags().StringVarP(&addTime, "time", "t", "", "Scheduled time as HH:MM")

	moveCmd := &cobra.Command{
		Use:   "move <id> <column>",
		Short: "Move a card to a column",
		Long:  "Move a card to the end of a column, or right before another card with --before.",
		Example: `  planmyday move task-3 doing
  planmyday move task-3 todo --before task-1`,
		Args: cobra.ExactArgs(2),
		Run:  runMove,
	}
	moveCmd.Flags().StringVarP(&moveBefore, "before", "b", "", "Insert before this card id")

	scheduleCmd := &cobra.Command{
		Use:     "schedule <id> <HH:MM|\"\">",
		Short:   "Set or clear the scheduled time of a card",
		Example: "  planmyday schedule task-3 14:30\n  planmyday schedule task-3 \"\"",
		Args:    cobra.ExactArgs(2),
		Run:     runSchedule,
	}

	rmCmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a card",
		Args:    cobra.ExactArgs(1),
		Run:     runRemove,
	}
	rmCmd.Flags().BoolVarP(&rmYes, "yes", "y", false, "Do not ask for confirmation")

	generateCmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate tasks with AI, aligned with your stored plan",
		Example: `  planmyday generate --prompt "Stretch" --prompt "Call the bank"`,
		Args:    cobra.NoArgs,
		Run:     runGenerate,
	}
	generateCmd.Flags().StringArrayVarP(&generatePrompts, "prompt", "p", nil, "Extra instruction for the generator (repeatable)")

	alignCmd := &cobra.Command{
		Use:   "align",
		Short: "Align existing tasks with your stored plan",
		Args:  cobra.NoArgs,
		Run:   runAlign,
	}

	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Clear tasks from the board",
		Args:  cobra.NoArgs,
		Run:   runArchive,
	}
	archiveCmd.Flags().BoolVar(&archiveKeepOpen, "keep-incomplete", false, "Only clear completed tasks")

	askCmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Ask the board assistant about your day",
		Example: `  planmyday ask "What should I do next?"`,
		Args:    cobra.MinimumNArgs(1),
		Run:     runAsk,
	}

	dictateCmd := &cobra.Command{
		Use:   "dictate",
		Short: "Have the board assistant read your tasks back to you",
		Args:  cobra.NoArgs,
		Run:   runDictate,
	}

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open the PlanMyDay web app in the browser",
		Args:  cobra.NoArgs,
		Run:   runOpen,
	}

	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect the session used against the task API",
	}
	authStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the session token comes from and when it expires",
		Args:  cobra.NoArgs,
		Run:   runAuthStatus,
	}
	authCmd.AddCommand(authStatusCmd)

	root.AddCommand(listCmd, addCmd, moveCmd, scheduleCmd, rmCmd, generateCmd, alignCmd, archiveCmd, askCmd, dictateCmd, openCmd, authCmd)
}

// cliNotifier prints outcome notices. Errors are skipped because the command
// returns them and they are printed with their remediation on exit.
func cliNotifier(w io.Writer) cardstore.Notifier {
	return cardstore.NotifierFunc(func(n cardstore.Notice) {
		switch n.Level {
		case cardstore.LevelSuccess:
			fmt.Fprintf(w, "\033[92m✅ %s\033[0m\n", n.Message)
		case cardstore.LevelWarning:
			fmt.Fprintf(w, "\033[93m⚠️  %s\033[0m\n", n.Message)
		case cardstore.LevelInfo:
			fmt.Fprintln(w, n.Message)
		}
	})
}

func newStore(cfg usercfg.Config, w io.Writer) *cardstore.Store {
	client := taskapi.New(cfg.APIURL, auth.NewSource(cfg.TokenCommand))
	return cardstore.New(client,
		cardstore.WithNotifier(cliNotifier(w)),
		cardstore.WithRollback(cfg.RollbackEnabled()),
	)
}

func runList(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if err := listCards(cmd.Context(), s, os.Stdout, listColumn); err != nil {
		log.Fatalf("Failed to list tasks: %v", err)
	}
}

func runAdd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	in := task.Input{
		Column:        cfg.Column(),
		Duration:      addDuration,
		Importance:    task.Importance(strings.ToLower(addImportance)),
		ScheduledTime: addTime,
	}
	if addColumn != "" {
		col, err := task.ParseColumn(addColumn)
		if err != nil {
			log.Fatalf("Failed to create task: %v", err)
		}
		in.Column = col
	}
	if len(args) == 1 {
		in.Title = args[0]
	} else {
		var err error
		if in, err = promptCardInput(in); err != nil {
			fmt.Println("\n\033[93mOperation cancelled by user.\033[0m")
			return
		}
	}

	s := newStore(cfg, os.Stdout)
	if err := addCard(cmd.Context(), s, in); err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}
}

func runMove(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if err := moveCard(cmd.Context(), s, args[0], args[1], moveBefore); err != nil {
		log.Fatalf("Failed to move task: %v", err)
	}
}

func runSchedule(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if err := scheduleCard(cmd.Context(), s, args[0], args[1]); err != nil {
		log.Fatalf("Failed to update time: %v", err)
	}
}

func runRemove(cmd *cobra.Command, args []string) {
	id := args[0]
	s := newStore(loadConfig(), os.Stdout)
	if !rmYes {
		title := id
		if err := s.Load(cmd.Context()); err == nil {
			if c, ok := s.Find(id); ok {
				title = fmt.Sprintf("%q (%s)", c.Title, id)
			}
		}
		confirmed := false
		if err := survey.AskOne(&survey.Confirm{
			Message: fmt.Sprintf("Delete %s?", title),
			Default: false,
		}, &confirmed); err != nil || !confirmed {
			fmt.Println("Nothing deleted.")
			return
		}
	}
	if err := removeCard(cmd.Context(), s, id); err != nil {
		log.Fatalf("Failed to delete task: %v", err)
	}
}

func runGenerate(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	fmt.Println("Generating tasks, this can take a while...")
	n, err := s.Generate(cmd.Context(), generatePrompts)
	if err != nil {
		log.Fatalf("Failed to generate AI tasks: %v", err)
	}
	fmt.Printf("%d new task(s)\n", n)
}

func runAlign(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if _, err := s.Align(cmd.Context()); err != nil {
		log.Fatalf("Failed to align tasks: %v", err)
	}
}

func runArchive(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if _, err := s.Archive(cmd.Context(), archiveKeepOpen); err != nil {
		log.Fatalf("Failed to archive tasks: %v", err)
	}
}

func runAsk(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if err := askAssistant(cmd.Context(), s, os.Stdout, strings.Join(args, " ")); err != nil {
		log.Fatalf("Failed to get AI response: %v", err)
	}
}

func runDictate(cmd *cobra.Command, args []string) {
	s := newStore(loadConfig(), os.Stdout)
	if err := dictateBoard(cmd.Context(), s, os.Stdout); err != nil {
		log.Fatalf("Failed to generate task dictation: %v", err)
	}
}

func runOpen(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := browser.OpenURL(cfg.WebURL); err != nil {
		log.Fatalf("Failed to open browser: %v", err)
	}
}

func runAuthStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := authStatus(cmd.Context(), cfg, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func listCards(ctx context.Context, s *cardstore.Store, w io.Writer, only string) error {
	columns := task.Columns
	if only != "" {
		col, err := task.ParseColumn(only)
		if err != nil {
			return err
		}
		columns = []task.Column{col}
	}
	if err := s.Load(ctx); err != nil {
		return err
	}
	for i, col := range columns {
		cards := s.Column(col)
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "\033[1m%s\033[0m (%d)\n", col.Title(), len(cards))
		if len(cards) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		for _, c := range cards {
			line := fmt.Sprintf("  %-12s %s", c.ID, c.Title)
			if meta := cardMeta(c, true); meta != "" {
				line += "  [" + meta + "]"
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func addCard(ctx context.Context, s *cardstore.Store, in task.Input) error {
	m, err := s.Create(in)
	return s.Apply(ctx, m, err)
}

func moveCard(ctx context.Context, s *cardstore.Store, id, column, before string) error {
	col, err := task.ParseColumn(column)
	if err != nil {
		return err
	}
	if err := s.Load(ctx); err != nil {
		return err
	}
	if before == "" {
		before = dropzone.End
	}
	m, err := s.Move(id, col, before)
	if err == nil && m == nil {
		fmt.Fprintln(os.Stderr, "Card is already there; nothing to do.")
	}
	return s.Apply(ctx, m, err)
}

func scheduleCard(ctx context.Context, s *cardstore.Store, id, hhmm string) error {
	hhmm = strings.TrimSpace(hhmm)
	if err := task.ValidateScheduledTime(hhmm); err != nil {
		return err
	}
	if err := s.Load(ctx); err != nil {
		return err
	}
	m, err := s.UpdateScheduledTime(id, hhmm)
	return s.Apply(ctx, m, err)
}

func removeCard(ctx context.Context, s *cardstore.Store, id string) error {
	m, err := s.Delete(id)
	return s.Apply(ctx, m, err)
}

func askAssistant(ctx context.Context, s *cardstore.Store, w io.Writer, question string) error {
	answer, err := s.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, answer)
	return nil
}

// dictateBoard prints the assistant's summary followed by the per-column counts.
func dictateBoard(ctx context.Context, s *cardstore.Store, w io.Writer) error {
	d, err := s.Dictate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, d.Dictation)
	b := d.Breakdown
	fmt.Fprintf(w, "\n%s %d · %s %d · %s %d · %s %d\n",
		task.ColumnBacklog.Title(), b.Backlog, task.ColumnTodo.Title(), b.Todo,
		task.ColumnDoing.Title(), b.Doing, task.ColumnDone.Title(), b.Done)
	return nil
}

func authStatus(ctx context.Context, cfg usercfg.Config, w io.Writer) error {
	switch {
	case os.Getenv(auth.EnvToken) != "":
		fmt.Fprintf(w, "Token source: $%s\n", auth.EnvToken)
	case cfg.TokenCommand != "":
		fmt.Fprintf(w, "Token source: command %q\n", cfg.TokenCommand)
	default:
		fmt.Fprintln(w, "Token source: none")
	}

	_, claims, err := auth.Check(ctx, auth.NewSource(cfg.TokenCommand))
	if claims.Subject != "" {
		fmt.Fprintf(w, "Subject: %s\n", claims.Subject)
	}
	if claims.Issuer != "" {
		fmt.Fprintf(w, "Issuer: %s\n", claims.Issuer)
	}
	if !claims.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires: %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\033[92m✅ Session looks usable\033[0m")
	return nil
}

// promptCardInput asks for the fields not given on the command line.
func promptCardInput(in task.Input) (task.Input, error) {
	durationLabels := make([]string, len(task.Durations))
	durationDefault := task.FormatDuration(task.DefaultDuration)
	for i, d := range task.Durations {
		durationLabels[i] = task.FormatDuration(d)
		if d == in.Duration {
			durationDefault = durationLabels[i]
		}
	}
	importanceLabels := make([]string, len(task.Importances))
	for i, imp := range task.Importances {
		importanceLabels[i] = string(imp)
	}
	importanceDefault := string(task.DefaultImportance)
	if in.Importance.Valid() {
		importanceDefault = string(in.Importance)
	}

	answers := struct {
		Title      string
		Duration   string
		Importance string
		Time       string
	}{}
	questions := []*survey.Question{
		{
			Name:     "title",
			Prompt:   &survey.Input{Message: "Task title:"},
			Validate: survey.Required,
		},
		{
			Name:   "duration",
			Prompt: &survey.Select{Message: "Duration:", Options: durationLabels, Default: durationDefault},
		},
		{
			Name:   "importance",
			Prompt: &survey.Select{Message: "Importance:", Options: importanceLabels, Default: importanceDefault},
		},
		{
			Name:   "time",
			Prompt: &survey.Input{Message: "Scheduled time (HH:MM, optional):", Default: in.ScheduledTime},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				return task.ValidateScheduledTime(strings.TrimSpace(s))
			},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return in, err
	}

	in.Title = answers.Title
	in.Importance = task.Importance(answers.Importance)
	in.ScheduledTime = answers.Time
	for i, label := range durationLabels {
		if label == answers.Duration {
			in.Duration = task.Durations[i]
		}
	}
	return in, nil
}

// cardMeta renders the short details line shown under a card title.
func cardMeta(c task.Card, extra bool) string {
	var parts []string
	if c.ScheduledTime != "" {
		parts = append(parts, "at "+c.ScheduledTime)
	}
	if extra {
		if d := task.FormatDuration(c.Duration); d != "" {
			parts = append(parts, d)
		}
		if c.Importance != "" {
			parts = append(parts, string(c.Importance))
		}
	}
	return strings.Join(parts, " · ")
}
