package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/annotation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/config"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/engine"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/generation"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/lesson"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/surface"
)

var attachCmd = &cobra.Command{
	Use:   "attach [file]",
	Short: "Annotate a range of a file",
	Long: `Selects the rune range [from, to) of the file, requests one annotation per
--type and appends the combined annotation block to the end of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

var attachOpts struct {
	from      int
	to        int
	types     []string
	query     string
	material  string
	reference string
	itemID    string
	level     string
	subject   string
	course    string
	token     string
	verbose   bool
}

func init() {
	f := attachCmd.Flags()
	f.IntVar(&attachOpts.from, "from", 0, "Start offset of the selection (runes)")
	f.IntVar(&attachOpts.to, "to", 0, "End offset of the selection (runes, exclusive)")
	f.StringSliceVarP(&attachOpts.types, "type", "t", []string{"explain"}, "Explanation type: explain, summary, detailed or examples (repeatable)")
	f.StringVarP(&attachOpts.query, "query", "q", "", "Question to send instead of the default prompt")
	f.StringVar(&attachOpts.material, "material", "", "Material to send instead of the selected text")
	f.StringVar(&attachOpts.reference, "reference", "", "Reference text to send instead of the selected text")
	f.StringVar(&attachOpts.itemID, "item", "", "Draft key (defaults to the file path)")
	f.StringVar(&attachOpts.level, "level", "", "QAQF level")
	f.StringVar(&attachOpts.subject, "subject", "", "Subject")
	f.StringVar(&attachOpts.course, "course", "", "Course id")
	f.StringVar(&attachOpts.token, "token", "", "Bearer token for the generation service (defaults to GENERATION_API_TOKEN)")
	f.BoolVarP(&attachOpts.verbose, "verbose", "v", false, "Log engine activity to stderr")

	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	types := make([]annotation.ExplanationType, 0, len(attachOpts.types))
	for _, raw := range attachOpts.types {
		t, err := annotation.ParseType(raw)
		if err != nil {
			return err
		}
		types = append(types, t)
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	itemID := attachOpts.itemID
	if itemID == "" {
		itemID = "file:" + path
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Nop()
	if attachOpts.verbose {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return err
		}
		defer log.Sync()
	}

	drafts, err := draft.OpenSQLite(draftDir)
	if err != nil {
		return err
	}
	defer drafts.Close()

	gen := generation.New(generation.Config{
		BaseURL:     cfg.GenerationURL,
		Timeout:     cfg.GenerationTimeout,
		RPS:         cfg.GenerationRPS,
		Credentials: credential.Chain(credential.Static(attachOpts.token), credential.Static(cfg.GenerationToken)),
		Logger:      log,
	})

	doc, err := engine.New(engine.Page{
		ItemID:    itemID,
		Title:     filepath.Base(path),
		QAQFLevel: attachOpts.level,
		Subject:   attachOpts.subject,
		CourseID:  attachOpts.course,
	}, engine.Deps{
		Generator: gen,
		Drafts:    drafts,
		Persister: filePersister{path: path},
		Clock:     schedule.Real(),
		Retry:     retry.Policy{MaxAttempts: cfg.RetryMaxAttempts, Delay: cfg.RetryDelay},
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer doc.Destroy()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	buf := surface.NewBuffer("")
	recovered, err := doc.Mount(ctx, buf, string(content))
	if err != nil {
		return err
	}
	if recovered {
		cmd.Printf("Recovered unsaved draft for %s\n", itemID)
	}
	buf.MountComplete()

	buf.Select(attachOpts.from, attachOpts.to)
	sess, err := doc.OpenSession()
	if err != nil {
		return userError(err)
	}
	defer sess.Close()

	sel := sess.Selection()
	cmd.Printf("Selected [%d, %d): %q\n", sel.From, sel.To, sel.Text)
	for _, t := range types {
		_, err := sess.Request(ctx, t, annotation.RequestOptions{
			Material:      attachOpts.material,
			ReferenceText: attachOpts.reference,
			UserQuery:     attachOpts.query,
		})
		if err != nil {
			return userError(err)
		}
		cmd.Printf("  %s received\n", t.Label())
	}

	attachment, err := attach(ctx, sess)
	if err != nil {
		return userError(err)
	}
	cmd.Println(attachment.Message())

	if err := doc.Save(ctx); err != nil {
		return fmt.Errorf("write %s: %w (draft kept as %s)", args[0], err, itemID)
	}
	cmd.Printf("Wrote %s\n", args[0])
	return nil
}

func attach(ctx context.Context, sess *annotation.Session) (annotation.Attachment, error) {
	type result struct {
		a   annotation.Attachment
		err error
	}
	ch := make(chan result, 1)
	sess.Attach(func(a annotation.Attachment, err error) { ch <- result{a, err} })
	select {
	case r := <-ch:
		return r.a, r.err
	case <-ctx.Done():
		return annotation.Attachment{}, ctx.Err()
	}
}

// userError reduces engine and collaborator failures to the message shown
// to the user.
func userError(err error) error {
	var validationErr *annotation.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return errors.New(validationErr.Message)
	case errors.Is(err, retry.ErrReadinessTimeout):
		return errors.New("editor not ready, try again")
	case errors.Is(err, generation.ErrAuth):
		return errors.New("no valid credential, set --token or GENERATION_API_TOKEN")
	case errors.Is(err, generation.ErrNoContent):
		return errors.New("no content generated")
	case errors.Is(err, generation.ErrNetwork):
		return fmt.Errorf("failed to generate content, please try again: %w", err)
	}
	return err
}

// filePersister writes the document back to its file.
type filePersister struct {
	path string
}

func (p filePersister) Update(_ context.Context, u lesson.Update) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".annotate-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(u.Description); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(p.path); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	return os.Rename(tmp.Name(), p.path)
}
