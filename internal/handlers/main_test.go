package handlers

import (
	"os"
	"testing"

	"github.com/momentum-app/momentum-server/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}
