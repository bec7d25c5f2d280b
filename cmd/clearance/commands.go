package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/clearance"
	"github.com/poiesic/clearance/access"
	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/ingestion"
	"github.com/poiesic/clearance/reembed"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// assistantOptions are appended to every assistant the commands open.
// Tests use it to replace the model provider.
var assistantOptions []clearance.Option

func aiConfig(c *cli.Context) *ai.Config {
	host := c.String("host")
	embeddingHost := c.String("embedding-host")
	if embeddingHost == "" {
		embeddingHost = host
	}
	generationHost := c.String("generation-host")
	if generationHost == "" {
		generationHost = host
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithGenerationHost(generationHost),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
		ai.WithAPIToken(c.String("api-token")),
	)
}

func openAssistant(c *cli.Context) (*clearance.Assistant, error) {
	registry, auth, err := access.Load(c.String("access"))
	if err != nil {
		return nil, fmt.Errorf("failed to load access file: %w", err)
	}

	cfg := aiConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := append([]clearance.Option{
		clearance.WithAIConfig(cfg),
		clearance.WithAccess(registry, auth),
	}, assistantOptions...)

	assistant, err := clearance.NewAssistant(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return assistant, nil
}

func questionArg(c *cli.Context) (string, error) {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return "", errors.New("a question is required")
	}
	return question, nil
}

func askCommand(c *cli.Context) error {
	question, err := questionArg(c)
	if err != nil {
		return err
	}

	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	if _, err := signIn(c, assistant, bufio.NewReader(c.App.Reader)); err != nil {
		return err
	}

	result, err := assistant.AnswerQuery(c.Context, c.String("user"), question, c.Int("max-results"))
	if result != nil {
		printAnswer(c.App.Writer, result)
		if c.Bool("verbose") {
			printDiagnostics(c.App.Writer, &result.Diagnostics)
		}
	}
	if err != nil {
		return describeError(err)
	}
	return nil
}

func retrieveCommand(c *cli.Context) error {
	question, err := questionArg(c)
	if err != nil {
		return err
	}

	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	if _, err := signIn(c, assistant, bufio.NewReader(c.App.Reader)); err != nil {
		return err
	}

	report, err := assistant.Retrieve(c.Context, c.String("user"), question, c.Int("max-results"))
	if err != nil {
		return describeError(err)
	}
	printReport(c.App.Writer, report)
	return nil
}

func chatCommand(c *cli.Context) error {
	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	out := c.App.Writer
	in := bufio.NewReader(c.App.Reader)
	user := c.String("user")

	role, err := signIn(c, assistant, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Signed in as %s (%s). Type 'exit' to quit.\n", user, role)
	for {
		fmt.Fprint(out, "> ")
		line, readErr := in.ReadString('\n')
		question := strings.TrimSpace(line)
		switch strings.ToLower(question) {
		case "":
			if readErr != nil {
				fmt.Fprintln(out)
				return nil
			}
			continue
		case "exit", "quit":
			return nil
		}

		result, err := assistant.AnswerQuery(c.Context, user, question, c.Int("max-results"))
		if result != nil {
			printAnswer(out, result)
		}
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "error: %v\n", describeError(err))
		}
		fmt.Fprintln(out)

		if readErr != nil {
			return nil
		}
		if c.Context.Err() != nil {
			return c.Context.Err()
		}
	}
}

// signIn checks the --user password when the access file holds credentials
// and returns the user's role. Without credentials the role is resolved by
// name only, after a warning.
func signIn(c *cli.Context, assistant *clearance.Assistant, in *bufio.Reader) (core.Role, error) {
	user := c.String("user")
	if !assistant.HasCredentials() {
		fmt.Fprintln(c.App.ErrWriter, "warning: no access file with passwords configured; identity is not verified")
		role, err := assistant.Registry().Authorize(user)
		if err != nil {
			return "", describeError(err)
		}
		return role, nil
	}

	password, err := readPassword(c.App.Reader, in, c.App.ErrWriter, "Password: ")
	if err != nil {
		return "", err
	}
	role, err := assistant.Authenticate(user, password)
	if err != nil {
		return "", describeError(err)
	}
	return role, nil
}

// readPassword reads without echo when r is a terminal, otherwise one line from in.
func readPassword(r io.Reader, in *bufio.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func ingestCommand(c *cli.Context) error {
	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	opts := []ingestion.Option{ingestion.WithBatchSize(c.Int("batch-size"))}
	if n := c.Int("pool-size"); n > 0 {
		opts = append(opts, ingestion.WithPoolSize(n))
	}
	pipeline, err := assistant.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	root := c.String("data")
	reports, err := pipeline.IngestDirectory(c.Context, root, &ingestion.IngestOptions{
		Reset: c.Bool("reset"),
		Force: c.Bool("force"),
	})
	for _, r := range reports {
		printDepartment(c.App.Writer, r)
	}
	if err != nil && !c.Bool("watch") {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if !c.Bool("watch") {
		return nil
	}
	fmt.Fprintf(c.App.ErrWriter, "Watching %s for changes (Ctrl-C to stop)\n", root)
	return pipeline.Watch(c.Context, root, c.Duration("debounce"), func(r *ingestion.DepartmentReport, err error) {
		if r != nil {
			printDepartment(c.App.Writer, r)
		}
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "error: %v\n", err)
		}
	})
}

func collectionsCommand(c *cli.Context) error {
	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	statuses, err := assistant.Collections(c.Context, c.Int("samples"))
	if err != nil {
		return err
	}
	printCollections(c.App.Writer, statuses)
	return nil
}

func healthCommand(c *cli.Context) error {
	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	h := assistant.Health(c.Context)
	printHealth(c.App.Writer, h)
	if !h.StorageOK {
		return errors.New("storage unavailable")
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if err := reembedConfig.Validate(); err != nil {
		return err
	}

	assistant, err := openAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	reembedder, err := assistant.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	var collections []core.CollectionID
	for _, name := range c.StringSlice("collection") {
		collections = append(collections, core.CollectionID(name))
	}
	if _, err := reembedder.Run(c.Context, collections...); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func hashPasswordCommand(c *cli.Context) error {
	in := bufio.NewReader(c.App.Reader)
	password, err := readPassword(c.App.Reader, in, c.App.ErrWriter, "Password to hash: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	hash, err := access.HashPassword(password, c.Int("cost"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}

// describeError turns access errors into one generic message so the CLI
// does not reveal whether an identity exists.
func describeError(err error) error {
	if errors.Is(err, core.ErrAccessDenied) {
		return errors.New("access denied")
	}
	if errors.Is(err, ai.ErrGenerationUnavailable) {
		return fmt.Errorf("answer generation failed; the retrieved context is shown above: %w", err)
	}
	return err
}
