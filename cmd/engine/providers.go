package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

var errUnsupportedAction = errors.New("unsupported action")

// botProvider plays a fixed strategy: captains take the first candidate,
// trailing players press with doubles and specials, and everyone else goes
// along.
type botProvider struct{}

func (p botProvider) Decide(_ context.Context, req roundrunner.DecisionRequest) (roundrunner.Decision, error) {
	switch req.Kind {
	case roundrunner.DecisionCaptain:
		if len(req.Candidates) > 0 && slices.Contains(req.Legal, roundrunner.ActionRequestPartner) {
			return roundrunner.Decision{Action: roundrunner.ActionRequestPartner, Partner: req.Candidates[0]}, nil
		}
		return roundrunner.Decision{Action: roundrunner.ActionGoSolo}, nil
	case roundrunner.DecisionPartnership, roundrunner.DecisionAardvarkResponse:
		return roundrunner.Decision{Action: roundrunner.ActionAccept}, nil
	case roundrunner.DecisionAardvark:
		team1, team2 := len(req.Formation.Team1), len(req.Formation.Team2)
		if team1 == 0 || team2 == 0 {
			return roundrunner.Decision{Action: roundrunner.ActionStaySolo}, nil
		}
		if team1 < team2 {
			return roundrunner.Decision{Action: roundrunner.ActionJoin, Team: statemachine.Team1}, nil
		}
		return roundrunner.Decision{Action: roundrunner.ActionJoin, Team: statemachine.Team2}, nil
	case roundrunner.DecisionOfferDouble:
		if req.Standings[req.Actor] < 0 && req.Betting.CurrentWager < 4*req.Betting.BaseWager {
			return roundrunner.Decision{Action: roundrunner.ActionOfferDouble}, nil
		}
		return roundrunner.Decision{Action: roundrunner.ActionPass}, nil
	case roundrunner.DecisionDoubleResponse:
		if req.Standings[req.Actor] < -2*float64(req.Betting.CurrentWager) {
			return roundrunner.Decision{Action: roundrunner.ActionDecline}, nil
		}
		return roundrunner.Decision{Action: roundrunner.ActionAccept}, nil
	case roundrunner.DecisionSpecial:
		trailing := req.Standings[req.Actor] < 0
		switch {
		case slices.Contains(req.Legal, roundrunner.ActionOption):
			return roundrunner.Decision{Action: roundrunner.ActionOption}, nil
		case trailing && slices.Contains(req.Legal, roundrunner.ActionFloat):
			return roundrunner.Decision{Action: roundrunner.ActionFloat}, nil
		case trailing && slices.Contains(req.Legal, roundrunner.ActionJoesSpecial):
			return roundrunner.Decision{Action: roundrunner.ActionJoesSpecial, Multiplier: 2}, nil
		}
		return roundrunner.Decision{Action: roundrunner.ActionPass}, nil
	default:
		return roundrunner.Decision{}, fmt.Errorf("%w: decision kind %q", roundrunner.ErrRunnerMisconfigured, req.Kind)
	}
}

type humanProvider struct {
	in  *bufio.Scanner
	out io.Writer
}

func newHumanProvider(in io.Reader, out io.Writer) humanProvider {
	return humanProvider{in: bufio.NewScanner(in), out: out}
}

func (p humanProvider) Decide(ctx context.Context, req roundrunner.DecisionRequest) (roundrunner.Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return roundrunner.Decision{}, err
		}

		fmt.Fprint(p.out, renderDecisionPrompt(req))
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return roundrunner.Decision{}, err
			}
			return roundrunner.Decision{}, io.EOF
		}

		decision, err := parseHumanDecision(p.in.Text())
		if err != nil {
			fmt.Fprintf(p.out, "invalid input: %v\n", err)
			continue
		}
		if err := validateHumanDecision(req, decision); err != nil {
			fmt.Fprintf(p.out, "illegal decision: %v\n", err)
			continue
		}
		return decision, nil
	}
}

func parseHumanDecision(input string) (roundrunner.Decision, error) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		return roundrunner.Decision{}, fmt.Errorf("%w: empty input", errUnsupportedAction)
	}

	noArgs := func(action roundrunner.Action) (roundrunner.Decision, error) {
		if len(parts) != 1 {
			return roundrunner.Decision{}, fmt.Errorf("%w: %s takes no argument", errUnsupportedAction, action)
		}
		return roundrunner.Decision{Action: action}, nil
	}

	switch parts[0] {
	case "partner", "p":
		if len(parts) != 2 {
			return roundrunner.Decision{}, fmt.Errorf("%w: partner requires a player id", errUnsupportedAction)
		}
		return roundrunner.Decision{Action: roundrunner.ActionRequestPartner, Partner: domain.PlayerID(parts[1])}, nil
	case "solo", "s":
		return noArgs(roundrunner.ActionGoSolo)
	case "accept", "a", "yes", "y":
		return noArgs(roundrunner.ActionAccept)
	case "decline", "d", "no", "n":
		return noArgs(roundrunner.ActionDecline)
	case "join", "j":
		if len(parts) != 2 || (parts[1] != "1" && parts[1] != "2") {
			return roundrunner.Decision{}, fmt.Errorf("%w: join requires team 1 or 2", errUnsupportedAction)
		}
		team := statemachine.Team1
		if parts[1] == "2" {
			team = statemachine.Team2
		}
		return roundrunner.Decision{Action: roundrunner.ActionJoin, Team: team}, nil
	case "stay", "alone":
		return noArgs(roundrunner.ActionStaySolo)
	case "double", "o":
		return noArgs(roundrunner.ActionOfferDouble)
	case "pass", "x":
		return noArgs(roundrunner.ActionPass)
	case "float", "f":
		return noArgs(roundrunner.ActionFloat)
	case "option", "opt":
		return noArgs(roundrunner.ActionOption)
	case "duncan", "dun":
		return noArgs(roundrunner.ActionDuncan)
	case "joes", "joe":
		if len(parts) != 2 || (parts[1] != "2" && parts[1] != "4" && parts[1] != "8") {
			return roundrunner.Decision{}, fmt.Errorf("%w: joes requires a multiplier of 2, 4 or 8", errUnsupportedAction)
		}
		return roundrunner.Decision{Action: roundrunner.ActionJoesSpecial, Multiplier: int(parts[1][0] - '0')}, nil
	default:
		return roundrunner.Decision{}, fmt.Errorf("%w: %q", errUnsupportedAction, input)
	}
}

func validateHumanDecision(req roundrunner.DecisionRequest, decision roundrunner.Decision) error {
	if !slices.Contains(req.Legal, decision.Action) {
		return fmt.Errorf("%s is not available, choose one of %s", decision.Action, joinActions(req.Legal))
	}
	if decision.Action == roundrunner.ActionRequestPartner && !slices.Contains(req.Candidates, decision.Partner) {
		return fmt.Errorf("%s cannot be asked, candidates are %s", decision.Partner, joinPlayers(req.Candidates))
	}
	return nil
}

// playerProvider routes the human's decisions to stdin and everyone else's
// to the bot, echoing each choice.
type playerProvider struct {
	human     domain.PlayerID
	humanSide roundrunner.DecisionProvider
	bot       roundrunner.DecisionProvider
	out       io.Writer
}

func (p playerProvider) Decide(ctx context.Context, req roundrunner.DecisionRequest) (roundrunner.Decision, error) {
	out := p.out
	if out == nil {
		out = os.Stdout
	}
	who, provider := "bot", p.bot
	if req.Actor == p.human {
		who, provider = "you", p.humanSide
	}
	decision, err := provider.Decide(ctx, req)
	if err != nil {
		return decision, err
	}
	fmt.Fprintf(out, "hole %d: %s (%s) -> %s\n", req.Hole, who, req.Actor, formatDecision(decision))
	return decision, nil
}

func formatDecision(decision roundrunner.Decision) string {
	switch {
	case decision.Partner != "":
		return fmt.Sprintf("%s %s", decision.Action, decision.Partner)
	case decision.Team != 0:
		return fmt.Sprintf("%s team%d", decision.Action, decision.Team)
	case decision.Multiplier != 0:
		return fmt.Sprintf("%s x%d", decision.Action, decision.Multiplier)
	default:
		return string(decision.Action)
	}
}

var actionHints = map[roundrunner.Action]string{
	roundrunner.ActionRequestPartner: "partner(p) <id>",
	roundrunner.ActionGoSolo:         "solo(s)",
	roundrunner.ActionAccept:         "accept(a)",
	roundrunner.ActionDecline:        "decline(d)",
	roundrunner.ActionJoin:           "join(j) <1|2>",
	roundrunner.ActionStaySolo:       "stay",
	roundrunner.ActionOfferDouble:    "double(o)",
	roundrunner.ActionPass:           "pass(x)",
	roundrunner.ActionFloat:          "float(f)",
	roundrunner.ActionOption:         "option(opt)",
	roundrunner.ActionDuncan:         "duncan(dun)",
	roundrunner.ActionJoesSpecial:    "joes <2|4|8>",
}

const promptWidth = 58

func renderDecisionPrompt(req roundrunner.DecisionRequest) string {
	lines := []string{
		"WOLF GOAT PIG",
		fmt.Sprintf("Hole %d | Round: %s | Decision: %s", req.Hole, req.RoundID, req.Kind),
		fmt.Sprintf("Order: %s", joinPlayers(req.Rotation.RotationOrder)),
		fmt.Sprintf("Captain: %s | Wager: %d quarters", req.Formation.Captain, req.Betting.CurrentWager),
	}
	if req.Rotation.GoatPlayerID != "" {
		lines = append(lines, fmt.Sprintf("Goat: %s", req.Rotation.GoatPlayerID))
	}
	if len(req.Formation.Team1) > 0 || len(req.Formation.Team2) > 0 {
		lines = append(lines, fmt.Sprintf("Team 1: %s | Team 2: %s", joinPlayers(req.Formation.Team1), joinPlayers(req.Formation.Team2)))
	}
	if len(req.Candidates) > 0 {
		lines = append(lines, fmt.Sprintf("Candidates: %s", joinPlayers(req.Candidates)))
	}
	lines = append(lines, "Standings:")
	lines = append(lines, formatStandingLines(req.Standings, req.Actor)...)

	hints := make([]string, 0, len(req.Legal))
	for _, action := range req.Legal {
		hints = append(hints, actionHints[action])
	}
	lines = append(lines, fmt.Sprintf("Options: %s", strings.Join(hints, " / ")))

	var b strings.Builder
	b.WriteString("+" + strings.Repeat("-", promptWidth+2) + "+\n")
	for _, line := range lines {
		b.WriteString(framePromptLine(line))
	}
	b.WriteString("+" + strings.Repeat("-", promptWidth+2) + "+\n")
	fmt.Fprintf(&b, "%s > ", req.Actor)
	return b.String()
}

func framePromptLine(content string) string {
	if len(content) > promptWidth {
		content = content[:promptWidth]
	}
	return fmt.Sprintf("| %-*s |\n", promptWidth, content)
}

func formatStandingLines(standings map[domain.PlayerID]float64, actor domain.PlayerID) []string {
	ids := make([]domain.PlayerID, 0, len(standings))
	for id := range standings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		marker := " "
		if id == actor {
			marker = ">"
		}
		lines = append(lines, fmt.Sprintf("%s %-8s %+7.1f", marker, id, standings[id]))
	}
	return lines
}

func joinPlayers(ids []domain.PlayerID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ",")
}

func joinActions(actions []roundrunner.Action) string {
	parts := make([]string, 0, len(actions))
	for _, action := range actions {
		parts = append(parts, string(action))
	}
	return strings.Join(parts, ",")
}
