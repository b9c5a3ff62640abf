package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"neurod/internal/eeg"
	"neurod/internal/httpapi"
	"neurod/internal/registry"
	"neurod/pkg/types"
)

type eegFlags struct {
	checkpoint  string
	scaler      string
	standardize string
	workers     int
	uploadDir   string
}

func (f *eegFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.checkpoint, "checkpoint", "", "Checkpoint path or id under --models-dir")
	fs.StringVar(&f.scaler, "scaler", "", "Scaler file (.json/.yaml/.toml) used when the checkpoint has none")
	fs.StringVar(&f.standardize, "standardize", "", "Standardisation: auto|persisted|batch")
	fs.IntVar(&f.workers, "workers", 0, "Rows classified in parallel (0 = GOMAXPROCS)")
}

func (f *eegFlags) apply(cmd *cobra.Command, a *app) {
	fs := cmd.Flags()
	c := &a.cfg.EEG
	if fs.Changed("checkpoint") {
		c.Checkpoint = f.checkpoint
	}
	if fs.Changed("scaler") {
		c.ScalerPath = f.scaler
	}
	if fs.Changed("standardize") {
		c.Standardize = f.standardize
	}
	if fs.Changed("workers") {
		c.Workers = f.workers
	}
	if fs.Changed("upload-dir") {
		c.UploadDir = f.uploadDir
	}
}

func (a *app) eegService() (*eeg.Service, error) {
	c := a.cfg.EEG
	path, err := registry.Resolve(a.cfg.ModelsDir, c.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("eeg: %w", err)
	}
	return eeg.New(eeg.Config{
		Checkpoint:  path,
		ScalerPath:  c.ScalerPath,
		Standardize: c.Standardize,
		Workers:     c.Workers,
		MaxFeatures: c.MaxFeatures,
		Logger:      &a.log,
	})
}

func (a *app) eegCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "eeg", Short: "EEG seizure-severity classifier"}

	var sf serveFlags
	var ef eegFlags
	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Serve POST /predict for CSV uploads",
		Example: "  neurod eeg serve --addr :8001 --checkpoint best_eeg_model",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, &a.cfg, &a.cfg.EEG.CORS)
			ef.apply(cmd, a)
			svc, err := a.eegService()
			if err != nil {
				return err
			}
			if a.cfg.EEG.APIKey == "" {
				a.log.Warn().Msg("EEG_API_KEY not set; requests to /predict will be rejected")
			}
			a.configureHTTP(a.cfg.EEG.CORS)
			h := httpapi.NewEEGMux(svc, httpapi.Options{APIKey: a.cfg.EEG.APIKey, UploadDir: a.cfg.EEG.UploadDir})
			return a.listenAndServe(cmd.Context(), "eeg", h)
		},
	}
	sf.register(serve)
	ef.register(serve)
	serve.Flags().StringVar(&ef.uploadDir, "upload-dir", "", "Directory receiving uploaded CSV files")

	var pf eegFlags
	predict := &cobra.Command{
		Use:   "predict <csv>",
		Short: "Classify every row of a CSV file and print a JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf.apply(cmd, a)
			report, err := a.eegPredictFile(cmd, args[0])
			if err != nil {
				return a.reportError(err)
			}
			return json.NewEncoder(a.stdout).Encode(report)
		},
	}
	pf.register(predict)

	cmd.AddCommand(serve, predict)
	return cmd
}

func (a *app) eegPredictFile(cmd *cobra.Command, path string) (*types.EEGReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()
	svc, err := a.eegService()
	if err != nil {
		return nil, err
	}
	preds, err := svc.PredictCSV(cmd.Context(), f)
	if err != nil {
		return nil, err
	}
	report := &types.EEGReport{
		Success:       true,
		FileProcessed: filepath.Base(path),
		NumRecords:    len(preds),
		Results:       make([]types.EEGSampleResult, len(preds)),
	}
	for i, p := range preds {
		report.Results[i] = types.EEGSampleResult{Sample: i + 1, Prediction: p.Prediction, Meaning: p.Meaning}
	}
	return report, nil
}
