package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"resumebuilder/internal/analysis"
	"resumebuilder/internal/client"
)

const usage = `usage: resumectl [-api URL] <command> [flags]

commands:
  register -name N -email E -password P
  login -email E -password P
  logout
  whoami
  list
  get -id ID
  save [-id ID] -file payload.json   (use -file - for stdin)
  delete -id ID
  pdf -id ID [-out file.pdf]
  archive -id ID
  link -id ID
  analyze -id ID
  cover-letter -id ID -job TEXT [-company C] [-position P]
  optimize -id ID -job TEXT
`

func main() {
	apiURL := flag.String("api", envOr("RESUMECTL_API", "http://localhost:5000"), "API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *apiURL, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, client.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "session expired or missing, run: resumectl login")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, apiURL, cmd string, args []string) error {
	sessionPath, err := sessionFile()
	if err != nil {
		return err
	}

	session, err := client.LoadSession(sessionPath)
	if err != nil && !errors.Is(err, client.ErrSessionExpired) {
		return err
	}
	c := client.New(apiURL, client.WithSession(session))

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	id := fs.Uint("id", 0, "resume id")

	switch cmd {
	case "register":
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password (min 6 characters)")
		_ = fs.Parse(args)
		s, err := c.Register(ctx, *name, *email, *password)
		if err != nil {
			return err
		}
		return saveAndReport(sessionPath, s)

	case "login":
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		s, err := c.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		return saveAndReport(sessionPath, s)

	case "logout":
		return client.ClearSession(sessionPath)

	case "whoami":
		p, err := c.Profile(ctx)
		if err != nil {
			return err
		}
		return printJSON(p)

	case "list":
		items, err := c.ListResumes(ctx)
		if err != nil {
			return err
		}
		for _, r := range items {
			name := r.PersonalInfo.Name
			if name == "" {
				name = "(untitled)"
			}
			fmt.Printf("%d\t%s\t%s\t%s\n", r.ID, name, r.Template, r.UpdatedAt.Format(time.RFC3339))
		}
		return nil

	case "get":
		_ = fs.Parse(args)
		r, err := c.GetResume(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(r)

	case "save":
		file := fs.String("file", "", "JSON payload path, - for stdin")
		_ = fs.Parse(args)
		body, err := readPayload(*file)
		if err != nil {
			return err
		}
		r, err := c.SaveResume(ctx, *id, body)
		if err != nil {
			return err
		}
		return printJSON(r)

	case "delete":
		_ = fs.Parse(args)
		if err := c.DeleteResume(ctx, *id); err != nil {
			return err
		}
		fmt.Println("Resume removed")
		return nil

	case "pdf":
		out := fs.String("out", "", "output path (default: server filename)")
		_ = fs.Parse(args)
		data, filename, err := c.DownloadPDF(ctx, *id)
		if err != nil {
			return err
		}
		target := *out
		if target == "" {
			target = filename
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", target, len(data))
		return nil

	case "archive":
		_ = fs.Parse(args)
		taskID, err := c.ArchivePDF(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Println("queued", taskID)
		return nil

	case "link":
		_ = fs.Parse(args)
		link, err := c.PDFLink(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Println(link.URL)
		return nil

	case "analyze":
		_ = fs.Parse(args)
		a, err := c.Analyze(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(a)

	case "cover-letter", "optimize":
		job := fs.String("job", "", "job description")
		company := fs.String("company", "", "company name")
		position := fs.String("position", "", "position title")
		_ = fs.Parse(args)
		req := analysis.JobRequest{JobDescription: *job, CompanyName: *company, Position: *position}
		if cmd == "optimize" {
			hints, err := c.Optimize(ctx, *id, req)
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(hints, "\n"))
			return nil
		}
		letter, err := c.CoverLetter(ctx, *id, req)
		if err != nil {
			return err
		}
		fmt.Print(letter)
		return nil
	}

	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func saveAndReport(path string, s client.Session) error {
	if err := client.SaveSession(path, s); err != nil {
		return err
	}
	fmt.Printf("logged in, session valid until %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func sessionFile() (string, error) {
	if p := os.Getenv("RESUMECTL_SESSION"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "resumectl", "session.json"), nil
}

func readPayload(path string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	switch path {
	case "":
		return nil, errors.New("missing -file")
	case "-":
		raw, err = io.ReadAll(os.Stdin)
	default:
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
