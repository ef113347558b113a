package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/backup"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/metrics"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network/tcp"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/session"
)

var (
	flagMember        string
	flagCommittee     string
	flagConfig        string
	flagSession       uint32
	flagSessions      int
	flagSessionLength time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a member of the committee",
	Long: "Runs consecutive sessions of the committee over a local chain, finalizing its blocks.\n" +
		"Parameters not given in the config file are taken from ALEPH_ prefixed environment variables or the defaults.",
	RunE: run,
}

func init() {
	runCmd.Flags().StringVar(&flagMember, "member", "", "file with the private key and pid of this member")
	runCmd.Flags().StringVar(&flagCommittee, "committee", "", "file with the public keys and addresses of the committee")
	runCmd.Flags().StringVar(&flagConfig, "config", "", "config file")
	runCmd.Flags().Uint32Var(&flagSession, "session", 0, "id of the first session")
	runCmd.Flags().IntVar(&flagSessions, "sessions", 1, "number of sessions to run, 0 runs them until interrupted")
	runCmd.Flags().DurationVar(&flagSessionLength, "session-length", 0, "how long a session lasts, 0 lasts until interrupted")
	_ = runCmd.MarkFlagRequired("member")
	_ = runCmd.MarkFlagRequired("committee")
}

func run(_ *cobra.Command, _ []string) error {
	member, err := loadMember(flagMember)
	if err != nil {
		return err
	}
	committee, err := loadCommittee(flagCommittee)
	if err != nil {
		return err
	}
	conf, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	config.AddKeys(conf, member, committee)
	if err := config.Valid(conf); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	log, err := logging.NewLogger(logging.LogConfig{
		Level:    conf.LogLevel,
		Path:     conf.LogFile,
		DiodeBuf: conf.LogBuffer,
		TimeUnit: time.Millisecond,
		Human:    conf.LogHuman,
	})
	if err != nil {
		return errors.Wrap(err, "creating logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.MetricsAddress != "" {
		ms := metrics.NewServer(conf.MetricsAddress, log)
		if err := ms.Start(); err != nil {
			return err
		}
		defer ms.Stop()
	}
	memlog := logging.NewService(conf.LogMemInterval, log)
	if err := memlog.Start(); err != nil {
		return err
	}
	defer memlog.Stop()

	store, err := backup.Open(conf.BackupPath, log)
	if err != nil {
		return err
	}
	defer store.Close()
	acked, err := store.Acked()
	if err != nil {
		return err
	}

	netserv, err := tcp.NewServer(conf.Addresses[conf.Pid], conf.Addresses, log)
	if err != nil {
		return err
	}
	defer netserv.Stop()

	chain := newLocalChain(acked, log)
	manager, err := session.NewManager(conf, chain, chain, store, netserv, log)
	if err != nil {
		return err
	}
	return runSessions(ctx, conf, manager, log)
}

// runSessions runs consecutive sessions with the same committee, handing each one over to the next.
func runSessions(ctx context.Context, conf *config.Config, manager *session.Manager, log zerolog.Logger) error {
	var carry *session.Carryover
	for i := 0; flagSessions == 0 || i < flagSessions; i++ {
		id := gomel.SessionID(flagSession + uint32(i))
		if err := manager.StartSession(ctx, conf.Session(id), carry); err != nil {
			return err
		}
		interrupted := waitSession(ctx, manager)
		var err error
		carry, err = manager.EndSession(context.Background())
		if err != nil {
			return errors.Wrapf(err, "session %d", id)
		}
		log.Info().Uint32(logging.Session, uint32(id)).Int(logging.Size, len(carry.Pending)).Msg("session handed over")
		if interrupted {
			return nil
		}
	}
	return nil
}

// waitSession blocks until the session should end. It reports whether the process was interrupted.
func waitSession(ctx context.Context, manager *session.Manager) bool {
	var timeout <-chan time.Time
	if flagSessionLength > 0 {
		timer := time.NewTimer(flagSessionLength)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return true
	case <-manager.Done():
		return true
	case <-timeout:
		return false
	}
}
