// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// InitLogger sets up Apex with a custom handler writing to stderr and a log
// level from the COF_LOG env variable.
func InitLogger() {
	level := strings.ToUpper(os.Getenv("COF_LOG"))
	if level == "" {
		level = "ERROR"
	}
	log.SetHandler(NewHandler(os.Stderr))
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.ErrorLevel
	}
	log.SetLevel(lvl)
}

// CustomHandler formats log messages as one line each:
//
//	2025-01-02 15:04:05 D cache hit key=ab12
type CustomHandler struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewHandler returns a CustomHandler writing to w.
func NewHandler(w io.Writer) *CustomHandler {
	return &CustomHandler{out: w, now: time.Now}
}

// HandleLog implements the log.Handler interface
func (h *CustomHandler) HandleLog(e *log.Entry) error {
	timestamp := h.now().Format("2006-01-02 15:04:05")
	level := strings.ToUpper(e.Level.String())

	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", timestamp, level, e.Message)

	names := e.Fields.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}
