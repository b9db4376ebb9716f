package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"vocabquiz/internal/auth"
	"vocabquiz/internal/client"
	"vocabquiz/internal/grading"
	"vocabquiz/internal/results"
	"vocabquiz/internal/scoring"
	"vocabquiz/internal/submission"

	"github.com/joho/godotenv"
)

const usage = `usage: quizctl <command> [flags]

commands:
  token       mint a learner JWT
  hash-token  bcrypt a grading token for GRADING_TOKEN_HASH
  import      store a quiz from a JSON file
  submit      grade and persist answers for a quiz
  review      print the review view of an attempt
  rescore     change the grading of one question of an attempt
`

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "token":
		err = runToken(args)
	case "hash-token":
		err = runHashToken(args)
	case "import":
		err = runImport(ctx, args)
	case "submit":
		err = runSubmit(ctx, args)
	case "review":
		err = runReview(ctx, args)
	case "rescore":
		err = runRescore(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("quizctl: %v", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// apiFlags registers the flags shared by every command that talks to the API.
func apiFlags(fs *flag.FlagSet) (apiURL, token *string) {
	apiURL = fs.String("api", envOrDefault("VOCABQUIZ_API", "http://localhost:8080/api/v1"), "API base URL")
	token = fs.String("token", os.Getenv("VOCABQUIZ_TOKEN"), "learner bearer token")
	return apiURL, token
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret")
	username := fs.String("username", "", "learner username")
	role := fs.String("role", auth.RoleStudent, "student or teacher")
	ttl := fs.Duration("ttl", 8*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if *secret == "" {
		return errors.New("token: -secret or JWT_SECRET is required")
	}
	tok, expiresAt, err := auth.NewService(auth.ServiceConfig{Secret: *secret, TokenTTL: *ttl}).IssueToken(*username, *role)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	log.Printf("expires %s", expiresAt.Format(time.RFC3339))
	return nil
}

func runHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ExitOnError)
	token := fs.String("token", os.Getenv("GRADING_TOKEN"), "grading token to hash")
	_ = fs.Parse(args)

	hash, err := auth.HashServiceToken(*token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// quizFile accepts either {"name":..., "items":[...]} or a bare item array.
type quizFile struct {
	Name  string            `json:"name"`
	Items []json.RawMessage `json:"items"`
}

func readQuizFile(path string) (quizFile, error) {
	var qf quizFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return qf, err
	}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		err = json.Unmarshal(raw, &qf.Items)
	} else {
		err = json.Unmarshal(raw, &qf)
	}
	if err != nil {
		return qf, fmt.Errorf("parse %s: %w", path, err)
	}
	return qf, nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	apiURL, token := apiFlags(fs)
	file := fs.String("file", "", "quiz JSON file")
	name := fs.String("name", "", "quiz name (overrides the file)")
	_ = fs.Parse(args)

	if *file == "" {
		return errors.New("import: -file is required")
	}
	qf, err := readQuizFile(*file)
	if err != nil {
		return err
	}
	if *name != "" {
		qf.Name = *name
	}

	c := client.New(client.Config{BaseURL: *apiURL, Token: *token})
	qz, err := c.ImportQuiz(ctx, qf.Name, qf.Items)
	if err != nil {
		return err
	}
	fmt.Println(qz.ID)
	return nil
}

// answersFile holds answers in display order, one slice per section.
type answersFile struct {
	FillInTheBlanks []string `json:"fill_in_the_blanks"`
	Sentences       []string `json:"sentences"`
}

func runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	apiURL, token := apiFlags(fs)
	quizID := fs.String("quiz", "", "quiz id")
	username := fs.String("username", "", "learner username")
	answersPath := fs.String("answers", "", "answers JSON file")
	gradingURL := fs.String("grading", envOrDefault("GRADING_BASE_URL", "http://localhost:8080/api/v1/ai"), "grading service base URL")
	gradingToken := fs.String("grading-token", os.Getenv("GRADING_TOKEN"), "grading service token")
	concurrency := fs.Int("concurrency", scoring.DefaultConcurrency, "parallel grading calls")
	backoff := fs.Duration("backoff", scoring.DefaultRetryBackoff, "delay before the single retry")
	timeout := fs.Duration("task-timeout", scoring.DefaultTaskTimeout, "per grading call timeout")
	spent := fs.Duration("time-spent", 0, "time the learner spent")
	_ = fs.Parse(args)

	if *quizID == "" || *username == "" || *answersPath == "" {
		return errors.New("submit: -quiz, -username and -answers are required")
	}
	raw, err := os.ReadFile(*answersPath)
	if err != nil {
		return err
	}
	var answers answersFile
	if err := json.Unmarshal(raw, &answers); err != nil {
		return fmt.Errorf("parse %s: %w", *answersPath, err)
	}

	api := client.New(client.Config{BaseURL: *apiURL, Token: *token})
	qz, err := api.GetQuiz(ctx, *quizID)
	if err != nil {
		return err
	}

	policy := &scoring.RetryPolicy{
		Grader:  grading.NewClient(grading.Config{BaseURL: *gradingURL, Token: *gradingToken}),
		Backoff: *backoff,
		Timeout: *timeout,
	}
	svc := submission.NewService(policy, api, *concurrency)
	res, err := svc.Submit(ctx, submission.Input{
		Username:  *username,
		QuizID:    qz.ID,
		QuizName:  qz.Name,
		TimeSpent: *spent,
		Questions: submission.Questions(qz.Categorize(), nil, answers.FillInTheBlanks, answers.Sentences),
	}, func(p scoring.Progress) {
		fmt.Fprintf(os.Stderr, "\rgrading %d/%d", p.Completed, p.Total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	log.Printf("stored attempt %s: %d/%d passed=%t", res.Attempt.ID, res.Attempt.Score, res.Attempt.TotalScore, res.Attempt.Passed)
	return printJSON(res.Attempt)
}

func runReview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	apiURL, token := apiFlags(fs)
	id := fs.String("id", "", "attempt id")
	raw := fs.Bool("raw", false, "print the stored attempt instead of the review view")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("review: -id is required")
	}
	c := client.New(client.Config{BaseURL: *apiURL, Token: *token})
	if *raw {
		a, err := c.GetResult(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(a)
	}
	rv, err := c.Review(ctx, *id)
	if err != nil {
		return err
	}
	return printJSON(rv)
}

func runRescore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rescore", flag.ExitOnError)
	apiURL, token := apiFlags(fs)
	id := fs.String("id", "", "attempt id")
	index := fs.Int("index", -1, "question index in the stored attempt")
	correct := fs.String("correct", "", "true or false, fill-in-the-blank only")
	score := fs.Int("score", -1, "0..4, sentence only")
	feedback := fs.String("feedback", "", "replacement feedback")
	_ = fs.Parse(args)

	if *id == "" || *index < 0 {
		return errors.New("rescore: -id and -index are required")
	}
	var upd results.QuestionUpdate
	if *correct != "" {
		v, err := strconv.ParseBool(*correct)
		if err != nil {
			return fmt.Errorf("rescore: -correct: %w", err)
		}
		upd.Correct = &v
	}
	if *score >= 0 {
		upd.Score = score
	}
	if *feedback != "" {
		upd.Feedback = feedback
	}

	a, err := client.New(client.Config{BaseURL: *apiURL, Token: *token}).Rescore(ctx, *id, *index, upd)
	if errors.Is(err, client.ErrRescoreMismatch) {
		log.Printf("warning: %v; showing the server result", err)
		err = nil
	}
	if err != nil {
		return err
	}
	return printJSON(a)
}
