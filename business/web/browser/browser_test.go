package browser_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func readFrame(t *testing.T, ch <-chan []byte) browser.Frame {
	select {
	case data := <-ch:
		var f browser.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Should be able to decode the frame: %v", err)
		}
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("Should receive a frame.")
	}
	return browser.Frame{}
}

func TestConfirm(t *testing.T) {
	t.Log("Given the need to ask the page a question.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the page answers.", testID)
		{
			evts := events.New()
			defer evts.Shutdown()

			b := browser.New(browser.Config{Evts: evts, PromptTimeout: 5 * time.Second})
			page := evts.Acquire("page")

			for _, want := range []bool{true, false} {
				go func() {
					var f browser.Frame
					if err := json.Unmarshal(<-page, &f); err != nil {
						t.Errorf("\t%s\tTest %d:\tShould be able to decode the frame: %v", failed, testID, err)
						return
					}
					if f.Type != browser.FrameConfirm || f.Message != "reload?" {
						t.Errorf("\t%s\tTest %d:\tShould receive the question, got %+v.", failed, testID, f)
						return
					}
					if err := b.Answer(f.ID, want); err != nil {
						t.Errorf("\t%s\tTest %d:\tShould be able to answer: %v", failed, testID, err)
					}
				}()

				if got := b.Confirm(context.Background(), "reload?"); got != want {
					t.Fatalf("\t%s\tTest %d:\tShould get the answer %v, got %v.", failed, testID, want, got)
				}
				t.Logf("\t%s\tTest %d:\tShould get the answer %v.", success, testID, want)
			}

			if err := b.Answer("6f1b2c3d-0000-4000-8000-000000000000", true); !errors.Is(err, browser.ErrUnknownPrompt) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an answer to no prompt, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an answer to no prompt.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen nobody answers.", testID)
		{
			evts := events.New()
			defer evts.Shutdown()

			b := browser.New(browser.Config{Evts: evts, PromptTimeout: 20 * time.Millisecond})

			if b.Confirm(context.Background(), "reload?") {
				t.Fatalf("\t%s\tTest %d:\tShould decline with no page connected.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould decline with no page connected.", success, testID)

			frames, err := b.PromptFrames()
			if err != nil || len(frames) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould forget a declined question, got %d, %v.", failed, testID, len(frames), err)
			}
			t.Logf("\t%s\tTest %d:\tShould forget a declined question.", success, testID)

			evts.Acquire("page")
			if b.Confirm(context.Background(), "reload?") {
				t.Fatalf("\t%s\tTest %d:\tShould decline after the timeout.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould decline after the timeout.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a page attaches while the question waits.", testID)
		{
			evts := events.New()
			defer evts.Shutdown()

			b := browser.New(browser.Config{Evts: evts, PromptTimeout: 5 * time.Second})

			answer := make(chan bool, 1)
			go func() {
				answer <- b.Confirm(context.Background(), "Chain changed to 0x5. Reload the session?")
			}()

			var frames [][]byte
			deadline := time.Now().Add(5 * time.Second)
			for len(frames) == 0 {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest %d:\tShould keep the question open.", failed, testID)
				}
				time.Sleep(time.Millisecond)

				var err error
				if frames, err = b.PromptFrames(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould encode the open questions: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould keep the question open.", success, testID)

			evts.Acquire("late-page")

			var f browser.Frame
			if err := json.Unmarshal(frames[0], &f); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the frame: %v", failed, testID, err)
			}
			if f.Type != browser.FrameConfirm || f.Message != "Chain changed to 0x5. Reload the session?" {
				t.Fatalf("\t%s\tTest %d:\tShould ask the late page, got %+v.", failed, testID, f)
			}
			t.Logf("\t%s\tTest %d:\tShould ask the late page.", success, testID)

			if err := b.Answer(f.ID, true); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to answer: %v", failed, testID, err)
			}

			select {
			case ok := <-answer:
				if !ok {
					t.Fatalf("\t%s\tTest %d:\tShould get the late page's answer.", failed, testID)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould get the late page's answer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get the late page's answer.", success, testID)
		}
	}
}

func TestFrames(t *testing.T) {
	t.Log("Given the need to render the session on the page.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the session changes.", testID)
		{
			evts := events.New()
			defer evts.Shutdown()

			b := browser.New(browser.Config{Evts: evts, MetaMask: true, LibVersion: "v1.16.7"})
			page := evts.Acquire("page")

			b.State(session.Session{
				Accounts:  []string{"0xABC"},
				GasPrice:  "21000000000",
				Balance:   "1500000000000000000",
				Connected: true,
			})

			f := readFrame(t, page)
			if f.Type != browser.FrameState || f.Session == nil {
				t.Fatalf("\t%s\tTest %d:\tShould receive a state frame, got %+v.", failed, testID, f)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a state frame.", success, testID)

			v := f.Session
			if v.Ether != "1" || v.GasPrice != "21000000000" || !v.MetaMask || v.LibVersion != "v1.16.7" {
				t.Fatalf("\t%s\tTest %d:\tShould render the session, got %+v.", failed, testID, v)
			}
			t.Logf("\t%s\tTest %d:\tShould render the session.", success, testID)

			if len(v.Names) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not name accounts without a name service, got %v.", failed, testID, v.Names)
			}
			t.Logf("\t%s\tTest %d:\tShould not name accounts without a name service.", success, testID)

			b.Alert("You have to install MetaMask !")
			if f := readFrame(t, page); f.Type != browser.FrameAlert || f.Message == "" {
				t.Fatalf("\t%s\tTest %d:\tShould receive an alert frame, got %+v.", failed, testID, f)
			}
			t.Logf("\t%s\tTest %d:\tShould receive an alert frame.", success, testID)

			b.Reload()
			if f := readFrame(t, page); f.Type != browser.FrameReload {
				t.Fatalf("\t%s\tTest %d:\tShould receive a reload frame, got %+v.", failed, testID, f)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a reload frame.", success, testID)
		}
	}
}
