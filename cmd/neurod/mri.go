package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"neurod/internal/apperr"
	"neurod/internal/httpapi"
	"neurod/internal/mri"
	"neurod/internal/registry"
)

func (a *app) mriService() (*mri.Service, error) {
	c := a.cfg.MRI
	path, err := registry.Resolve(a.cfg.ModelsDir, c.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("mri: %w", err)
	}
	return mri.New(mri.Config{Checkpoint: path, InputSize: c.InputSize, MaxPixels: c.MaxPixels, Logger: &a.log})
}

func (a *app) mriCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mri", Short: "Alzheimer MRI stage classifier"}

	var (
		sf         serveFlags
		checkpoint string
		uploadDir  string
		inputSize  int
	)
	applyModelFlags := func(cmd *cobra.Command) {
		if cmd.Flags().Changed("checkpoint") {
			a.cfg.MRI.Checkpoint = checkpoint
		}
		if cmd.Flags().Changed("input-size") {
			a.cfg.MRI.InputSize = inputSize
		}
	}

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Serve POST /predict for MRI image uploads",
		Example: "  neurod mri serve --addr :8000 --checkpoint best_alzheimer_model",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.apply(cmd, &a.cfg, &a.cfg.MRI.CORS)
			applyModelFlags(cmd)
			if cmd.Flags().Changed("upload-dir") {
				a.cfg.MRI.UploadDir = uploadDir
			}
			svc, err := a.mriService()
			if err != nil {
				return err
			}
			if a.cfg.MRI.APIKey == "" {
				a.log.Warn().Msg("ALZHEIMER_API_KEY not set; requests to /predict will be rejected")
			}
			a.configureHTTP(a.cfg.MRI.CORS)
			h := httpapi.NewMRIMux(svc, httpapi.Options{APIKey: a.cfg.MRI.APIKey, UploadDir: a.cfg.MRI.UploadDir})
			return a.listenAndServe(cmd.Context(), "mri", h)
		},
	}
	sf.register(serve)
	serve.Flags().StringVar(&checkpoint, "checkpoint", "", "Checkpoint path or id under --models-dir")
	serve.Flags().IntVar(&inputSize, "input-size", 0, "Square resize target in pixels")
	serve.Flags().StringVar(&uploadDir, "upload-dir", "", "Persist uploads here (off when empty)")

	predict := &cobra.Command{
		Use:   "predict <image>",
		Short: "Classify a JPEG or PNG image and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyModelFlags(cmd)
			if !mri.AllowedFile(args[0]) {
				return a.reportError(apperr.InvalidInput("Invalid file type. Please upload an image (jpg/jpeg/png)."))
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return a.reportError(err)
			}
			svc, err := a.mriService()
			if err != nil {
				return a.reportError(err)
			}
			pred, err := svc.Predict(cmd.Context(), data)
			if err != nil {
				return a.reportError(err)
			}
			return json.NewEncoder(a.stdout).Encode(pred)
		},
	}
	predict.Flags().StringVar(&checkpoint, "checkpoint", "", "Checkpoint path or id under --models-dir")
	predict.Flags().IntVar(&inputSize, "input-size", 0, "Square resize target in pixels")

	cmd.AddCommand(serve, predict)
	return cmd
}
