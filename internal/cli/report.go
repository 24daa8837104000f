package cli

import (
	"github.com/infersetup/infersetup/internal/ir"
	"github.com/infersetup/infersetup/internal/logging"
	"github.com/infersetup/infersetup/internal/state"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// uploadRecord copies the run record to S3. Failures are logged only; a
// missing report never fails a provisioned host.
func uploadRecord(cmd *cobra.Command, bucket string, record *ir.RunRecord) {
	ctx := cmd.Context()

	cfg := map[string]string{"bucket": bucket, "encrypt": "true"}
	if region := viper.GetString("report-region"); region != "" {
		cfg["region"] = region
	}

	backend, err := newReportBackend(ctx, &state.BackendConfig{Type: "s3", Config: cfg})
	if err != nil {
		logging.Warn("failed to configure run report upload", "bucket", bucket, "error", err)
		return
	}
	if err := backend.Write(ctx, record); err != nil {
		logging.Warn("failed to upload run record", "bucket", bucket, "error", err)
		return
	}
	logging.Info("uploaded run record", "bucket", bucket, "id", record.ID)
}

var newReportBackend = state.NewBackend
