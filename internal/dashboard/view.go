// Package dashboard is the terminal front end: connection status, live
// pressure, session counters, the insight and a log pane.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/impact-insoles/insole-app/internal/app"
	"github.com/impact-insoles/insole-app/internal/go_func_utils"
)

// Model is the part of app.Model the dashboard reads
type Model interface {
	GetSnapshot() app.Snapshot
	ListenToSnapshot(ch chan<- app.Snapshot) func()
	ListenToLog(ch chan<- string) func()
	GetLogTail(n int) []string
	ListenToCloseApplication(ch chan<- struct{}) func()
}

// Controller is the part of app.Controller bound to keys. Errors are logged by
// the controller, the dashboard ignores them.
type Controller interface {
	StartScan() error
	Connect() error
	Reset() error
	ToggleRecording() error
	NewRun() error
	Primary() error
	OnEscapeKey()
}

const keyHelp = "[yellow]S[white] Scan  |  [yellow]C[white] Connect  |  [yellow]R[white] Reset  |  [yellow]Space[white] Start/Stop  |  [yellow]N[white] New run  |  [yellow]Enter[white] Next step  |  [yellow]Esc[white] Quit"

// View renders model snapshots with tview and forwards key presses to the controller
type View struct {
	logger     *log.Logger
	app        *tview.Application
	model      Model
	controller Controller

	root            *tview.Flex
	connectionPanel *tview.TextView
	livePanel       *tview.TextView
	sessionPanel    *tview.TextView
	insightPanel    *tview.TextView
	logView         *tview.TextView

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewView builds the widgets and starts following the model
func NewView(logger *log.Logger, application *tview.Application, model Model, controller Controller) *View {
	if logger == nil {
		panic("View: logger cannot be nil")
	}
	if application == nil {
		panic("View: application cannot be nil")
	}
	if model == nil || controller == nil {
		panic("View: model and controller cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		logger:     logger,
		app:        application,
		model:      model,
		controller: controller,
		ctx:        ctx,
		cancel:     cancel,
	}

	v.initWidgets()
	v.app.SetInputCapture(v.handleKey)
	v.render(model.GetSnapshot())
	v.updateLogDisplay()
	v.setupEventListeners()

	v.wg.Add(1)
	go_func_utils.SafeGo(logger, "View log resize", v.monitorLogResize)

	return v
}

func newPanel(title string) *tview.TextView {
	panel := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	panel.SetBorder(true).SetTitle(title)
	return panel
}

func (v *View) initWidgets() {
	// no SetChangedFunc with app.Draw: it hangs when lines arrive after Stop
	v.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	v.logView.SetBorder(true).SetTitle(" Logs ")

	v.connectionPanel = newPanel(" Insole ")
	v.livePanel = newPanel(" Pressure ")
	v.sessionPanel = newPanel(" Session ")
	v.insightPanel = newPanel(" Insight ")

	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(keyHelp)

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.connectionPanel, 6, 0, false).
		AddItem(v.livePanel, 12, 0, false).
		AddItem(v.sessionPanel, 0, 1, false)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.insightPanel, 10, 0, false).
		AddItem(v.logView, 0, 1, false)

	body := tview.NewFlex().
		AddItem(left, 0, 1, false).
		AddItem(right, 0, 1, false)

	v.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructions, 1, 0, false).
		AddItem(body, 0, 1, true)
}

func (v *View) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape:
		v.controller.OnEscapeKey()
		return nil
	case tcell.KeyEnter:
		v.controller.Primary()
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	switch unicode.ToLower(event.Rune()) {
	case 's':
		v.controller.StartScan()
	case 'c':
		v.controller.Connect()
	case 'r':
		v.controller.Reset()
	case ' ':
		v.controller.ToggleRecording()
	case 'n':
		v.controller.NewRun()
	default:
		return event
	}
	return nil
}

func (v *View) render(s app.Snapshot) {
	v.connectionPanel.SetText(formatConnection(s.Connection))
	v.livePanel.SetText(formatLive(s.Session))
	v.sessionPanel.SetText(formatSession(s.Session))
	v.insightPanel.SetText(formatInsight(s.Insight))
}

// queue runs fn on the tview event loop. It stops waiting once the view is shut
// down, since nothing drains the update queue after Run returns.
func (v *View) queue(fn func()) {
	done := make(chan struct{})
	go_func_utils.SafeGo(v.logger, "View update", func() {
		v.app.QueueUpdate(fn)
		close(done)
	})
	select {
	case <-done:
	case <-v.ctx.Done():
	}
}

func (v *View) setupEventListeners() {
	snapshotChan := make(chan app.Snapshot, 1)
	snapshotUnregister := v.model.ListenToSnapshot(snapshotChan)
	v.wg.Add(1)
	go_func_utils.SafeGo(v.logger, "View snapshot listener", func() {
		defer v.wg.Done()
		defer snapshotUnregister()
		for {
			select {
			case <-v.ctx.Done():
				return
			case <-snapshotChan:
				// a full channel drops values, so always render the latest
				v.queue(func() {
					v.render(v.model.GetSnapshot())
					v.app.ForceDraw()
				})
			}
		}
	})

	logChan := make(chan string, 1)
	logUnregister := v.model.ListenToLog(logChan)
	v.wg.Add(1)
	go_func_utils.SafeGo(v.logger, "View log listener", func() {
		defer v.wg.Done()
		defer logUnregister()
		for {
			select {
			case <-v.ctx.Done():
				return
			case <-logChan:
				v.queue(func() {
					v.updateLogDisplay()
					v.app.ForceDraw()
				})
			}
		}
	})

	closeChan := make(chan struct{}, 1)
	closeUnregister := v.model.ListenToCloseApplication(closeChan)
	v.wg.Add(1)
	go_func_utils.SafeGo(v.logger, "View close listener", func() {
		defer v.wg.Done()
		defer closeUnregister()
		select {
		case <-v.ctx.Done():
		case <-closeChan:
			v.app.Stop()
		}
	})
}

func (v *View) logViewHeight() int {
	_, _, _, height := v.logView.GetInnerRect()
	return height
}

func (v *View) updateLogDisplay() {
	height := v.logViewHeight()
	if height <= 0 {
		return
	}

	v.logView.Clear()
	for _, line := range v.model.GetLogTail(height) {
		if _, err := fmt.Fprintln(v.logView, tview.Escape(line)); err != nil {
			v.logger.Printf("View: Error writing to log view: %v", err)
		}
	}
}

func (v *View) monitorLogResize() {
	defer v.wg.Done()
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			v.queue(func() {
				height := v.logViewHeight()
				if height != lastHeight && height > 0 {
					lastHeight = height
					v.updateLogDisplay()
					v.app.ForceDraw()
				}
			})
		}
	}
}

// Run shows the dashboard and blocks until it is stopped
func (v *View) Run() error {
	return v.app.SetRoot(v.root, true).Run()
}

// Shutdown stops the listeners and waits for them to finish
func (v *View) Shutdown() {
	v.logger.Println("View: Shutting down")
	v.cancel()
	v.wg.Wait()
	v.logger.Println("View: Shutdown complete")
}
