// Package log builds the slog loggers used by onioncrawl.
//
// Every logger is wrapped in a SecureHandler, which masks attribute values
// that look like credentials: cookies and authorization headers captured
// from pages, proxy passwords embedded in socks5:// URLs, bearer tokens,
// and private key material. Masking applies at every level, so verbose
// logs can be shared without leaking secrets.
//
// NewLogger writes to stderr and, optionally, to an activity log file that
// keeps a record of every visited page across runs:
//
//	logger, closer, err := log.NewLogger(log.Options{
//	    Writer:  os.Stderr,
//	    Verbose: verbose,
//	    File:    "data/logs/activity.log",
//	})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
package log
