package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/modelcache"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the ONNX model artifacts",
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download all model artifacts to the models directory",
	Long: `Fetch every model the pipeline needs into MODELS_PATH. Models already
present on disk are skipped unless --force is given. The serve command
downloads models lazily on first use, so this is only needed to warm
the directory ahead of time (e.g. in a container build).`,
	RunE: runModelsDownload,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models and their on-disk state",
	RunE:  runModelsList,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsListCmd)

	modelsDownloadCmd.Flags().Bool("force", false, "Re-download models that already exist")
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	force := mustGetBool(cmd, "force")
	ctx := cmd.Context()

	for _, def := range modelcache.Registry {
		localPath := filepath.Join(cfg.Paths.Models, def.LocalName)
		if _, err := os.Stat(localPath); err == nil {
			if !force {
				fmt.Printf("%-18s already present (%s)\n", def.Name, def.LocalName)
				continue
			}
			if err := os.Remove(localPath); err != nil {
				return fmt.Errorf("removing %s: %w", localPath, err)
			}
		}

		bar := progressbar.NewOptions64(
			modelcache.ContentLength(ctx, def, cfg.Models.Repo),
			progressbar.OptionSetDescription(def.Name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
			progressbar.OptionOnCompletion(func() { fmt.Println() }),
		)
		if _, err := modelcache.EnsureLocal(ctx, def, cfg.Paths.Models, cfg.Models.Repo, bar); err != nil {
			return err
		}
	}

	fmt.Printf("\nAll models ready in %s\n", cfg.Paths.Models)
	return nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Printf("%-18s %-22s %s\n", "MODEL", "FILE", "STATUS")
	for _, def := range modelcache.Registry {
		status := "missing"
		if info, err := os.Stat(filepath.Join(cfg.Paths.Models, def.LocalName)); err == nil {
			status = fmt.Sprintf("%.1f MB", float64(info.Size())/(1024*1024))
		}
		fmt.Printf("%-18s %-22s %s\n", def.Name, def.LocalName, status)
	}
	return nil
}
