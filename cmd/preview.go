package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	service "github.com/abdulrahmanalageeli/match-sub002/internal/app"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
)

const defaultRosterEvent = "offline"

// rosterFile is the YAML document read by the preview command.
type rosterFile struct {
	Event        string        `yaml:"event"`
	Participants []rosterEntry `yaml:"participants"`
}

type rosterEntry struct {
	Number      int            `yaml:"number"`
	Name        string         `yaml:"name"`
	Age         int            `yaml:"age"`
	Gender      string         `yaml:"gender"`
	Nationality string         `yaml:"nationality"`
	Absent      bool           `yaml:"absent"`
	Answers     map[string]any `yaml:"answers"`
}

func previewCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "preview ROSTER.yaml",
		Short: "Arrange a YAML roster offline and print the ranked previews as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			roster, err := readRoster(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top-k") {
				topK = cfg.TopK
			}
			return preview(cmd.Context(), roster, topK, cmd.OutOrStdout(),
				service.WithLogger(logger.Get()),
				service.WithWorkerCount(cfg.WorkerCount),
				service.WithRules(cfg.Rules()),
				service.WithOptimizerParams(cfg.OptimizerParams()),
			)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of previews to print (defaults to top_k)")
	return cmd
}

func readRoster(path string) (rosterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rosterFile{}, fmt.Errorf("read roster: %w", err)
	}
	return parseRoster(data)
}

func parseRoster(data []byte) (rosterFile, error) {
	var r rosterFile
	if err := yaml.Unmarshal(data, &r); err != nil {
		return rosterFile{}, fmt.Errorf("parse roster: %w", err)
	}
	if r.Event == "" {
		r.Event = defaultRosterEvent
	}
	if len(r.Participants) == 0 {
		return rosterFile{}, fmt.Errorf("parse roster: %w: no participants", model.ErrValidation)
	}
	return r, nil
}

// preview registers the roster on an in-memory service and writes the best
// topK arrangements to w.
func preview(ctx context.Context, r rosterFile, topK int, w io.Writer, opts ...service.Option) error {
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop(context.Background())

	for _, e := range r.Participants {
		attended := !e.Absent
		_, err := svc.RegisterParticipant(ctx, r.Event, e.Number, service.Registration{
			Name:        e.Name,
			Age:         e.Age,
			Gender:      e.Gender,
			Nationality: e.Nationality,
			Attended:    &attended,
			Answers:     e.Answers,
		})
		if err != nil {
			return fmt.Errorf("participant %d: %w", e.Number, err)
		}
	}

	out, err := svc.PreviewArrangements(ctx, r.Event, topK)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"event": r.Event, "previews": out})
}
