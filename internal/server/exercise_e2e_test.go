//go:build !ci

package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func TestE2ERunDocumentExercise(t *testing.T) {
	srv, ts := testServer(t)

	ctx := newBrowser(t, 60*time.Second)

	url := browserURL(ts.URL) + "/lessons/intro"
	sel := `[data-exercise-id="intro-first-render"]`

	var output, frameSrc string
	var frameHidden bool
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(sel+` [data-action="run"]`, chromedp.ByQuery),
		chromedp.Click(sel+` [data-action="run"]`, chromedp.ByQuery),
		chromedp.Poll(`document.querySelector('`+sel+` .output').textContent === "Document rendered successfully"`, nil,
			chromedp.WithPollingTimeout(10*time.Second)),
		chromedp.Text(sel+` .output`, &output, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelector('`+sel+` iframe').getAttribute("src") || ""`, &frameSrc),
		chromedp.Evaluate(`document.querySelector('`+sel+` iframe').hidden`, &frameHidden),
	)
	if err != nil {
		t.Fatalf("chromedp: %v", err)
	}

	if output != "Document rendered successfully" {
		t.Errorf("output = %q", output)
	}
	if !strings.HasPrefix(frameSrc, "/preview/") || frameHidden {
		t.Errorf("preview iframe not shown: src=%q hidden=%v", frameSrc, frameHidden)
	}
	if !srv.tracker.IsCompleted("intro") {
		t.Error("running the only exercise should complete the intro lesson")
	}
}

func TestE2EHintsReveal(t *testing.T) {
	_, ts := testServer(t)

	ctx := newBrowser(t, 60*time.Second)

	url := browserURL(ts.URL) + "/lessons/websites"
	sel := `[data-exercise-id="websites-config"]`

	var hintCount int
	var hintHidden bool
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitVisible(sel+` [data-action="hint"]`, chromedp.ByQuery),
	}
	for i := 1; i <= 3; i++ {
		actions = append(actions,
			chromedp.Click(sel+` [data-action="hint"]`, chromedp.ByQuery),
			chromedp.Poll(fmt.Sprintf(`document.querySelectorAll('%s .hint').length === %d && !document.querySelector('%s [data-action="hint"]').disabled`, sel, i, sel), nil,
				chromedp.WithPollingTimeout(5*time.Second)),
		)
	}
	actions = append(actions,
		chromedp.Evaluate(`document.querySelectorAll('`+sel+` .hint').length`, &hintCount),
		chromedp.Evaluate(`document.querySelector('`+sel+` [data-action="hint"]').hidden`, &hintHidden),
	)
	err := chromedp.Run(ctx, actions...)
	if err != nil {
		t.Fatalf("chromedp: %v", err)
	}
	if hintCount != 3 || !hintHidden {
		t.Errorf("hints = %d, button hidden = %v", hintCount, hintHidden)
	}
}
