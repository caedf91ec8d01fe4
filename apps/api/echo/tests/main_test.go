package tests

import (
	"log"
	"os"
	"testing"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/status"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	inmemdb "github.com/trezcool/ratiba/storage/database/inmem"
)

var (
	app         echoapi.Server
	schedRepo   schedule.Repository
	statusStore status.Store
)

func TestMain(m *testing.M) {
	// error bodies must take the production shape
	core.Conf.Debug = false

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		log.Fatalf("inmemdb.Open(): %v", err)
	}
	schedRepo = inmemdb.NewScheduleRepository(db)
	statusStore = inmemdb.NewStatusStore(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(core.Conf)
	validate, translator := core.NewValidator()
	schedule.InitValidators(validate, translator)

	schedSvc := schedule.NewService(nil, schedRepo, mailSvc, validate, core.Conf)
	statusCtrl := status.NewController(statusStore, core.Conf)

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(false)

	// set up server
	app = echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           core.Conf,
			Logger:         logger,
			DisableReqLogs: true,
			ScheduleSvc:    schedSvc,
			StatusCtrl:     statusCtrl,
			Validate:       validate,
			Translator:     translator,
		},
	)

	os.Exit(m.Run())
}
