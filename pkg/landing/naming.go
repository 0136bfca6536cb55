package landing

import (
	"fmt"
	"time"
)

const stagingTimestampLayout = "20060102_150405"

// StagingTableName builds the recon_stage_{execution_id}_{side}_{timestamp}
// naming convention staging tables follow, so a DBA can identify and
// reap them even without the metadata table.
func StagingTableName(executionID string, side Side, now time.Time) string {
	return fmt.Sprintf("recon_stage_%s_%s_%s", executionID, side, now.UTC().Format(stagingTimestampLayout))
}
