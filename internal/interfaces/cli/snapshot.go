package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/aptrec/internal/bootstrap"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
	"github.com/turtacn/aptrec/pkg/errors"
)

func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Validate and publish similarity snapshots",
	}
	cmd.AddCommand(newSnapshotValidateCmd(), newSnapshotPublishCmd())
	return cmd
}

type snapshotView struct {
	Source     string `json:"source"`
	Properties int    `json:"properties"`
	Landmarks  int    `json:"landmarks"`
	Prefix     string `json:"prefix,omitempty"`
	EventID    string `json:"event_id,omitempty"`
}

func (v snapshotView) TableHeaders() []string {
	return []string{"Source", "Properties", "Landmarks", "Prefix", "Event"}
}

func (v snapshotView) TableRows() [][]string {
	return [][]string{{v.Source, strconv.Itoa(v.Properties), strconv.Itoa(v.Landmarks), v.Prefix, v.EventID}}
}

// loadSnapshot reads and compiles from dir when set, otherwise from the
// configured source.
func loadSnapshot(ctx context.Context, cc *CLIContext, dir string) (*snapshot.Snapshot, *snapshot.Serving, error) {
	var src snapshot.Source
	if dir != "" {
		src = snapshot.NewDirSource(dir, cc.Logger)
	} else {
		snaps, err := bootstrap.NewSnapshotSource(cc.Config, cc.Logger, cc.Cleanup)
		if err != nil {
			return nil, nil, err
		}
		src = snaps.Source
	}

	snap, err := src.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	serving, err := snap.Compile()
	if err != nil {
		return nil, nil, err
	}
	return snap, serving, nil
}

func describe(serving *snapshot.Serving) snapshotView {
	v := snapshotView{Source: serving.Source, Properties: serving.Store.Size()}
	if serving.Landmarks != nil {
		v.Landmarks = len(serving.Landmarks.Landmarks())
	}
	return v
}

func newSnapshotValidateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a snapshot and check its shape without serving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				_, serving, err := loadSnapshot(ctx, cc, dir)
				if err != nil {
					return err
				}
				PrintSuccess(cmd, "snapshot is valid")
				return PrintResult(cmd, describe(serving))
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "snapshot directory (default: configured source)")
	return cmd
}

func newSnapshotPublishCmd() *cobra.Command {
	var (
		dir    string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a snapshot directory to object storage and announce it",
		Long: "publish validates the snapshot in --dir, uploads its documents under\n" +
			"--prefix in the snapshot bucket and, when Kafka is enabled, emits a\n" +
			"snapshot-published event so running servers reload it.",
		Example: `  aptrec snapshot publish --dir ./data --prefix snapshots/2024-06-01/`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				return runSnapshotPublish(ctx, cmd, cc, dir, prefix)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "snapshot directory to publish (required)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "object key prefix (default: snapshots/<UTC timestamp>/)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runSnapshotPublish(ctx context.Context, cmd *cobra.Command, cc *CLIContext, dir, prefix string) error {
	if prefix == "" {
		prefix = fmt.Sprintf("snapshots/%s/", time.Now().UTC().Format("20060102T150405Z"))
	}

	snap, serving, err := loadSnapshot(ctx, cc, dir)
	if err != nil {
		return err
	}

	store, err := cc.Factories.ObjectStore(ctx, cc)
	if err != nil {
		return err
	}
	if err := snapshot.Publish(ctx, store, prefix, snap); err != nil {
		return err
	}
	cc.Logger.Info("snapshot uploaded", logging.String("prefix", prefix), logging.Int("properties", serving.Store.Size()))

	view := describe(serving)
	view.Prefix = prefix

	announcer, err := cc.Factories.Announcer(cc)
	if err != nil {
		return errors.Wrap(err, errors.CodeMessageQueue, "snapshot uploaded but announcement failed").WithDetail(prefix)
	}
	if announcer != nil {
		ev := kafka.SnapshotPublished{
			ID:         kafka.NewEventID(),
			Source:     serving.Source,
			Prefix:     prefix,
			Properties: serving.Store.Size(),
		}
		if err := announcer.SnapshotPublished(ctx, ev); err != nil {
			return errors.Wrap(err, errors.CodeMessageQueue, "snapshot uploaded but announcement failed").WithDetail(prefix)
		}
		view.EventID = ev.ID
	}

	PrintSuccess(cmd, "snapshot published to "+prefix)
	return PrintResult(cmd, view)
}

//Personal.AI order the ending
