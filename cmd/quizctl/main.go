// Command quizctl is the operator tool for a quizd database: quiz import,
// local users, enrollments, dev tokens, a one-shot expiry sweep and the
// attempt event trail.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/enrollment"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

const usage = `usage: quizctl <command> [flags]

commands:
  import  -file quiz.yaml          import or replace a quiz
  user    -username u -password p [-role student|teacher|admin]
  enroll  -user id -course id [-role student|teacher] [-remove]
  token   -user id [-role r]
  sweep                            expire overdue attempts once
  events  -attempt id              print the event trail of an attempt
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := config.FromEnv()
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "token" {
		// Minting needs only the secret.
		exitOn(runToken(cfg, args))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		exitOn(fmt.Errorf("db open: %w", err))
	}
	defer dbh.Close()

	switch cmd {
	case "import":
		err = runImport(ctx, lg, cfg, dbh, args)
	case "user":
		err = runUser(ctx, dbh, args)
	case "enroll":
		err = runEnroll(ctx, dbh, args)
	case "sweep":
		err = runSweep(ctx, lg, cfg, dbh)
	case "events":
		err = runEvents(ctx, dbh, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	exitOn(err)
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "quizctl: %v\n", err)
		os.Exit(1)
	}
}

func runImport(ctx context.Context, lg *logger.Logger, cfg config.Config, dbh *sql.DB, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "quiz YAML file")
	_ = fs.Parse(args)
	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	q, err := parseQuizYAML(data)
	if err != nil {
		return err
	}
	store := quiz.NewSQLStore(dbh, db.Driver(cfg.DBDriver), lg)
	if err := store.PutQuiz(ctx, q); err != nil {
		return err
	}
	fmt.Printf("imported quiz %s (%d questions, %d points)\n", q.ID, len(q.Questions), quiz.TotalPoints(q))
	return nil
}

func runUser(ctx context.Context, dbh *sql.DB, args []string) error {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "password")
	role := fs.String("role", quiz.RoleStudent, "student, teacher or admin")
	_ = fs.Parse(args)
	if *username == "" || *password == "" {
		return fmt.Errorf("-username and -password are required")
	}
	switch *role {
	case quiz.RoleStudent, quiz.RoleTeacher, quiz.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", *role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	_, err = dbh.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role) VALUES ($1,$2,$3,$4)
		ON CONFLICT (username) DO UPDATE SET password_hash=EXCLUDED.password_hash, role=EXCLUDED.role`,
		id, *username, string(hash), *role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	if err := dbh.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1`, *username).Scan(&id); err != nil {
		return err
	}
	fmt.Printf("user %s id=%s role=%s\n", *username, id, *role)
	return nil
}

func runEnroll(ctx context.Context, dbh *sql.DB, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	course := fs.String("course", "", "course id")
	role := fs.String("role", enrollment.RoleStudent, "student or teacher")
	remove := fs.Bool("remove", false, "unenroll instead")
	_ = fs.Parse(args)
	if *user == "" || *course == "" {
		return fmt.Errorf("-user and -course are required")
	}
	repo := enrollment.NewSQLRepo(dbh)
	if *remove {
		return repo.Unenroll(ctx, *user, *course)
	}
	if err := repo.Enroll(ctx, *user, *course, *role); err != nil {
		return err
	}
	list, err := repo.ListByCourse(ctx, *course)
	if err != nil {
		return err
	}
	fmt.Printf("course %s now has %d enrollments\n", *course, len(list))
	return nil
}

func runToken(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "subject (user id)")
	role := fs.String("role", quiz.RoleStudent, "role claim")
	_ = fs.Parse(args)
	if strings.TrimSpace(*user) == "" {
		return fmt.Errorf("-user is required")
	}
	tok, err := auth.NewAuthService(cfg.AuthSecret).IssueJWT(*user, *role)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func runSweep(ctx context.Context, lg *logger.Logger, cfg config.Config, dbh *sql.DB) error {
	store := quiz.NewSQLStore(dbh, db.Driver(cfg.DBDriver), lg)
	svc := quiz.NewService(store, enrollment.NewSQLRepo(dbh), quiz.Options{
		Log:         lg,
		Events:      syncx.NewEventRepo(dbh, ""),
		ExpiryGrace: cfg.ExpiryGrace,
	})
	n, err := svc.ExpireOverdue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("expired %d attempts\n", n)
	return nil
}

func runEvents(ctx context.Context, dbh *sql.DB, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	attempt := fs.String("attempt", "", "attempt id")
	_ = fs.Parse(args)
	if *attempt == "" {
		return fmt.Errorf("-attempt is required")
	}
	events, err := syncx.NewEventRepo(dbh, "").ListByKey(ctx, *attempt)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range events {
		_ = enc.Encode(map[string]any{
			"seq":        e.Seq,
			"type":       e.Type,
			"data":       json.RawMessage(e.DataJSON),
			"created_at": time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339),
		})
	}
	return nil
}
