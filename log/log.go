package log

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

var logFileName = filepath.Join(os.TempDir(), "wandbcanvas.log")

var (
	InfoLog    *log.Logger
	WarningLog *log.Logger
	ErrorLog   *log.Logger
)

var globalLogFile *os.File

// Initialize should be called once at the start of the program to set up logging.
// When agent is true the log file is suffixed so the background agent and an
// interactive invocation do not clobber each other's output.
func Initialize(agent bool) {
	if agent {
		logFileName = filepath.Join(os.TempDir(), "wandbcanvas-agent.log")
	}

	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		log.Fatalf("could not open log file: %s", err)
	}

	InfoLog = log.New(f, "INFO:", log.Ldate|log.Ltime|log.Lshortfile)
	WarningLog = log.New(f, "WARNING:", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLog = log.New(f, "ERROR:", log.Ldate|log.Ltime|log.Lshortfile)
	globalLogFile = f

	InitDebug()
}

// Close closes the log file and prints its location if anything was written.
func Close() {
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Close()

	if stat, err := os.Stat(logFileName); err == nil && stat.Size() > 0 {
		fmt.Println("wrote logs to " + logFileName)
	}

	CloseDebug()
}

// Every rate-limits logging to once per interval.
type Every struct {
	interval time.Duration
	last     time.Time
}

func NewEvery(interval time.Duration) *Every {
	return &Every{interval: interval}
}

// ShouldLog returns true if the interval has elapsed since the last
// permitted log.
func (e *Every) ShouldLog() bool {
	if time.Since(e.last) >= e.interval {
		e.last = time.Now()
		return true
	}
	return false
}

