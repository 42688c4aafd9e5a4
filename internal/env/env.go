package env

import (
	"github.com/thatsimonsguy/shade-tester/internal/config"
)

var Cfg *config.Config
