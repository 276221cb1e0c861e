package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thomas-vilte/backlog-responder/internal/config"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/i18n"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"github.com/thomas-vilte/backlog-responder/internal/storage/gcs"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type (
	CredentialsFinder func(ctx context.Context) (*google.Credentials, error)
	LoaderFactory     func(ctx context.Context, cfg config.PromptConfig) (ports.PromptLoader, func() error, error)
)

type DoctorCommand struct {
	out             io.Writer
	findCredentials CredentialsFinder
	newLoader       LoaderFactory
}

func NewDoctorCommand() *DoctorCommand {
	return &DoctorCommand{
		out:             os.Stdout,
		findCredentials: defaultCredentials,
		newLoader:       defaultLoader,
	}
}

func (d *DoctorCommand) CreateCommand() *cli.Command {
	return &cli.Command{
		Name:    "doctor",
		Aliases: []string{"dr"},
		Usage:   "Check configuration, credentials and the system prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load variables from a .env file before checking",
			},
			&cli.BoolFlag{
				Name:  "fetch-prompt",
				Usage: "Also download the system prompt from Cloud Storage",
			},
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Output language (defaults to PROMPT_LANGUAGE, then en)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			if command.Root() != nil && command.Root().Writer != nil {
				d.out = command.Root().Writer
			}
			return d.Run(ctx, command.String("env-file"), command.Bool("fetch-prompt"), command.String("lang"))
		},
	}
}

type checkStatus int

const (
	checkStatusOK checkStatus = iota
	checkStatusError
	checkStatusSkipped
)

type checkResult struct {
	status     checkStatus
	message    string
	suggestion string
}

// Run prints one line per check and returns an error when any check fails.
func (d *DoctorCommand) Run(ctx context.Context, envFile string, fetchPrompt bool, lang string) error {
	envErr := config.LoadEnvFile(envFile)

	t, err := i18n.NewTranslations(outputLanguage(lang), "")
	if err != nil {
		return err
	}

	fmt.Fprintln(d.out, t.GetMessage("doctor_running_checks", 0, nil))

	var cfg *config.Config
	failures := 0
	report := func(nameID string, result checkResult) {
		name := t.GetMessage(nameID, 0, nil)
		switch result.status {
		case checkStatusOK:
			fmt.Fprintf(d.out, "  ✔ %s", name)
		case checkStatusSkipped:
			fmt.Fprintf(d.out, "  - %s", name)
		default:
			failures++
			fmt.Fprintf(d.out, "  ✘ %s", name)
		}
		if result.message != "" {
			fmt.Fprintf(d.out, ": %s", result.message)
		}
		fmt.Fprintln(d.out)
		if result.suggestion != "" {
			fmt.Fprintf(d.out, "    → %s\n", result.suggestion)
		}
	}

	report("doctor_check_env", d.checkEnv(t, envErr))

	cfgResult := checkResult{status: checkStatusOK}
	cfg, err = config.LoadConfig("")
	if err != nil {
		cfgResult = resultFromError(err)
	}
	report("doctor_check_config", cfgResult)

	report("doctor_check_credentials", d.checkCredentials(ctx, t))

	if fetchPrompt {
		report("doctor_check_prompt", d.checkPrompt(ctx, t, cfg))
	}

	fmt.Fprintln(d.out)
	if failures > 0 {
		msg := t.GetMessage("doctor_has_errors", failures, map[string]interface{}{"Count": failures})
		fmt.Fprintln(d.out, msg)
		return cli.Exit(msg, 1)
	}
	fmt.Fprintln(d.out, t.GetMessage("doctor_all_good", 0, nil))
	return nil
}

func (d *DoctorCommand) checkEnv(t *i18n.Translations, envErr error) checkResult {
	if envErr != nil {
		return resultFromError(envErr)
	}
	missing := config.MissingVars()
	if len(missing) == 0 {
		return checkResult{status: checkStatusOK}
	}
	return checkResult{
		status: checkStatusError,
		message: t.GetMessage("doctor_missing_vars", len(missing), map[string]interface{}{
			"Count": len(missing),
			"Names": strings.Join(missing, ", "),
		}),
		suggestion: errors.ErrConfigMissing.Suggestion,
	}
}

func (d *DoctorCommand) checkCredentials(ctx context.Context, t *i18n.Translations) checkResult {
	creds, err := d.findCredentials(ctx)
	if err != nil {
		return checkResult{
			status:     checkStatusError,
			message:    err.Error(),
			suggestion: "Run `gcloud auth application-default login` or attach a service account",
		}
	}
	project := creds.ProjectID
	if project == "" {
		project = "-"
	}
	return checkResult{
		status:  checkStatusOK,
		message: t.GetMessage("doctor_credentials_found", 0, map[string]interface{}{"Project": project}),
	}
}

func (d *DoctorCommand) checkPrompt(ctx context.Context, t *i18n.Translations, cfg *config.Config) checkResult {
	if cfg == nil {
		return checkResult{status: checkStatusSkipped}
	}

	loader, closeFn, err := d.newLoader(ctx, cfg.Prompt)
	if err != nil {
		return resultFromError(err)
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	text, err := loader.LoadPrompt(ctx)
	if err != nil {
		return resultFromError(err)
	}
	return checkResult{
		status: checkStatusOK,
		message: t.GetMessage("doctor_prompt_loaded", 0, map[string]interface{}{
			"Bytes":  len(text),
			"Bucket": cfg.Prompt.BucketName,
			"Path":   cfg.Prompt.FilePath,
		}),
	}
}

func resultFromError(err error) checkResult {
	result := checkResult{status: checkStatusError, message: err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		result.suggestion = appErr.Suggestion
	}
	return result
}

func outputLanguage(flag string) string {
	for _, candidate := range []string{flag, os.Getenv("PROMPT_LANGUAGE")} {
		switch candidate {
		case "ja", "en", "es":
			return candidate
		}
	}
	return "en"
}

func defaultCredentials(ctx context.Context) (*google.Credentials, error) {
	return google.FindDefaultCredentials(ctx, cloudPlatformScope)
}

func defaultLoader(ctx context.Context, cfg config.PromptConfig) (ports.PromptLoader, func() error, error) {
	loader, err := gcs.NewLoader(ctx, cfg.BucketName, cfg.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return loader, loader.Close, nil
}
