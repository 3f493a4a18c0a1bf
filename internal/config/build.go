package config

import (
	"fmt"
	"time"
)

// set at build time with -ldflags "-X madrasah/internal/config.DistributionVersion=..."
var (
	DistributionBranch  = "dev"
	DistributionEnv     = "local"
	DistributionVersion = "0.0.0"
	DistributionDate    = time.Now().Format("2006.01.02")
)

func GetVersion() string {
	return fmt.Sprintf("%s-%s-%s", DistributionVersion, DistributionBranch, DistributionDate)
}
