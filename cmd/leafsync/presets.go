package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jobrunner/leafsync/internal/app"
	"github.com/jobrunner/leafsync/internal/application"
	"github.com/jobrunner/leafsync/internal/config"
	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Inspect the configured preset storage",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List and validate every preset in storage",
	RunE:  runPresetsList,
}

var presetsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download every preset from storage into a local directory",
	RunE:  runPresetsPull,
}

func init() {
	presetsPullCmd.Flags().String("dest", "./presets", "destination directory")
	presetsCmd.AddCommand(presetsListCmd)
	presetsCmd.AddCommand(presetsPullCmd)
}

// openStorage loads the configuration and opens the preset storage it names.
func openStorage(ctx context.Context) (output.ObjectStorage, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.NewStorage(ctx, cfg.Presets.Storage)
}

func runPresetsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	objects, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing presets: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tLAYERS\tMARKERS\tSTATUS")
	invalid := 0
	for _, obj := range objects {
		name, layers, markers, status := "-", "-", "-", "ok"
		p, err := decodeObject(ctx, store, obj.Key)
		if err != nil {
			status = err.Error()
			invalid++
		} else {
			name = p.Name
			layers = fmt.Sprint(len(p.Layers))
			markers = fmt.Sprint(len(p.Markers))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", obj.Key, name, layers, markers, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d presets are invalid", invalid, len(objects))
	}
	return nil
}

func runPresetsPull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dest, _ := cmd.Flags().GetString("dest")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	objects, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing presets: %w", err)
	}

	for _, obj := range objects {
		target := filepath.Join(dest, filepath.FromSlash(obj.Key))
		if err := store.Download(ctx, obj.Key, target); err != nil {
			return fmt.Errorf("downloading %s: %w", obj.Key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", obj.Key, target)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pulled %d presets\n", len(objects))
	return nil
}

func decodeObject(ctx context.Context, store output.ObjectStorage, key string) (*domain.Preset, error) {
	rc, err := store.GetReader(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return application.DecodePreset(rc, key)
}
