package pairing_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/architect"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/internal/config"
	"github.com/pair-run/pair/internal/loop"
	"github.com/pair-run/pair/internal/tracker"

	"github.com/rs/zerolog"
)

// waitForSent polls until sess has sent at least n prompts. A mock session's
// channel only ever holds one turn's worth of scripted messages at a time,
// so every scenario below gates its next Push on the previous prompt having
// actually landed.
func waitForSent(sess *agentprovider.MockSession, n int) {
	Eventually(func() int { return len(sess.Sent) }, 2*time.Second, 5*time.Millisecond).Should(BeNumerically(">=", n))
}

func newLoopConfig() *config.Config {
	return &config.Config{
		Architect:              config.ProviderBinding{Provider: "mock-architect"},
		Driver:                 config.ProviderBinding{Provider: "mock-driver"},
		Navigator:              config.ProviderBinding{Provider: "mock-navigator"},
		NavigatorMaxTurns:      5,
		DriverMaxTurns:         5,
		SessionHardLimitMin:    30,
		PermissionTimeoutMS:    1000,
		ReviewDisplayTimeoutMS: 1000,
		MaxPromptLength:        10000,
	}
}

var _ = Describe("ImplementationLoop end to end", func() {
	var (
		architectSess *agentprovider.MockSession
		driverSess    *agentprovider.MockSession
		navSess       *agentprovider.MockSession
		registry      *agentprovider.Registry
	)

	BeforeEach(func() {
		architectSess = agentprovider.NewMockSession(8)
		driverSess = agentprovider.NewMockSession(8)
		navSess = agentprovider.NewMockSession(8)

		registry = agentprovider.NewRegistry()
		registry.Register("mock-architect", func(ctx context.Context, cfg agentprovider.Config) (agentprovider.Session, error) {
			return architectSess, nil
		})
		registry.Register("mock-driver", func(ctx context.Context, cfg agentprovider.Config) (agentprovider.Session, error) {
			return driverSess, nil
		})
		registry.Register("mock-navigator", func(ctx context.Context, cfg agentprovider.Config) (agentprovider.Session, error) {
			return navSess, nil
		})
	})

	It("runs a full plan, implement, and passing-review cycle", func() {
		architectSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{{
				Kind: agentprovider.PartText,
				Text: "1. Add a logout handler.\n" + architect.PlanCompleteSentinel,
			}},
		})

		navSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		driverSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{
				{Kind: agentprovider.PartText, Text: "Added the logout handler."},
				{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
					ID:    "t1",
					Name:  "mcp__driver__driverRequestReview",
					Input: map[string]any{"context": "logout handler added"},
				}},
			},
		})
		driverSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		l := loop.New(newLoopConfig(), registry, tracker.New(), broker.New(time.Second, zerolog.Nop()), zerolog.Nop())

		resC := make(chan loop.Result, 1)
		go func() {
			resC <- l.Run(context.Background(), loop.RunOptions{Task: "Add a logout button", ProjectPath: "/tmp"})
		}()

		waitForSent(navSess, 2)
		navSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t2",
				Name:  "mcp__navigator__navigatorCodeReview",
				Input: map[string]any{"pass": true, "comment": "Clean diff, ships it"},
			}}},
		})
		navSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		var res loop.Result
		Eventually(resC, 5*time.Second).Should(Receive(&res))
		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(loop.OutcomeComplete))
		Expect(res.Summary).To(Equal("Clean diff, ships it"))
	})

	It("forwards a Driver guidance request to the Navigator and resumes with feedback", func() {
		architectSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{{
				Kind: agentprovider.PartText,
				Text: "1. Locate the auth module.\n" + architect.PlanCompleteSentinel,
			}},
		})

		navSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		driverSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{
				{Kind: agentprovider.PartText, Text: "Not sure which package owns session refresh."},
				{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
					ID:    "t1",
					Name:  "mcp__driver__driverRequestGuidance",
					Input: map[string]any{"context": "session refresh ownership unclear"},
				}},
			},
		})
		driverSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		l := loop.New(newLoopConfig(), registry, tracker.New(), broker.New(time.Second, zerolog.Nop()), zerolog.Nop())

		resC := make(chan loop.Result, 1)
		go func() {
			resC <- l.Run(context.Background(), loop.RunOptions{Task: "Fix session refresh bug", ProjectPath: "/tmp"})
		}()

		waitForSent(navSess, 2)
		navSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		waitForSent(driverSess, 2)
		Expect(driverSess.Sent[1]).To(ContainSubstring("Continue with your implementation"))

		driverSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t2",
				Name:  "mcp__driver__driverRequestReview",
				Input: map[string]any{"context": "session refresh fixed"},
			}}},
		})
		driverSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		waitForSent(navSess, 3)
		navSess.Push(agentprovider.Message{
			Kind: agentprovider.MessageAssistant,
			Parts: []agentprovider.Part{{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t3",
				Name:  "mcp__navigator__navigatorCodeReview",
				Input: map[string]any{"pass": true, "comment": "Good fix"},
			}}},
		})
		navSess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

		var res loop.Result
		Eventually(resC, 5*time.Second).Should(Receive(&res))
		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(loop.OutcomeComplete))
		Expect(res.Summary).To(Equal("Good fix"))
	})
})
