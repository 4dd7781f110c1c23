package controller

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

// ApologyMessage replaces the reply when the chat request fails
const ApologyMessage = "Sorry, I encountered an error. Please try again."

var codeKeywords = []string{
	"code", "program", "function", "script", "debug",
	"python", "javascript", "html", "css", "api",
	"class", "algorithm", "bug", "compile", "sql",
}

// WantsCode reports whether a message mentions programming, which shows
// the working cue while the reply is pending
func WantsCode(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range codeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var fencePattern = regexp.MustCompile("(?s)```([\\w+-]*)[ \\t]*\\n?(.*?)```")

// ParseSegments splits text into prose and fenced code segments
func ParseSegments(text string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, Segment{Text: text[last:m[0]]})
		}
		segs = append(segs, Segment{
			Code:     true,
			Language: text[m[2]:m[3]],
			Text:     strings.TrimRight(text[m[4]:m[5]], "\n"),
		})
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, Segment{Text: text[last:]})
	}
	return segs
}

// SendChat sends a chat message within the active session. Blank text is
// ignored. The user entry is shown at once; a failed request shows an
// apology instead of a reply and is not returned.
func (c *Controller) SendChat(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if c.state.Session == nil || c.state.Phase != PhaseSessionActive {
		c.mu.Unlock()
		return c.fail(internal.ErrNoSession)
	}
	sessionID := c.state.Session.SessionID
	c.mu.Unlock()

	c.view.AppendEntry(Entry{Role: EntryUser, Segments: []Segment{{Text: text}}})

	working := WantsCode(text)
	if working {
		c.setWorking(true, 0)
	}

	reply, err := c.backend.SendChat(ctx, sessionID, text)
	if err == nil && !reply.Success {
		err = &internal.APIError{Path: "/chat", Message: reply.Response}
	}
	if err != nil {
		internal.LogWarn("Chat request failed: %v", err)
		c.view.AppendEntry(Entry{Role: EntrySystem, Segments: []Segment{{Text: ApologyMessage}}})
		if working {
			c.setWorking(false, 0)
		}
		return nil
	}

	c.view.AppendEntry(Entry{Role: EntryAssistant, Segments: ParseSegments(reply.Response)})
	if working {
		c.setWorking(false, c.workingHold)
	}
	return nil
}

// setWorking shows or hides the working cue. Hiding with a hold delays it;
// any later call cancels a pending hide.
func (c *Controller) setWorking(on bool, hold time.Duration) {
	c.workMu.Lock()
	defer c.workMu.Unlock()
	c.workGen++
	gen := c.workGen
	if c.workTimer != nil {
		c.workTimer.Stop()
		c.workTimer = nil
	}
	if on || hold <= 0 {
		c.view.SetWorking(on)
		return
	}
	c.workTimer = time.AfterFunc(hold, func() {
		c.workMu.Lock()
		defer c.workMu.Unlock()
		if c.workGen != gen {
			return
		}
		c.workTimer = nil
		c.view.SetWorking(false)
	})
}
