package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

type buildRunReportInput struct {
	Mode     string
	RoundID  string
	Course   string
	Human    *domain.PlayerID
	FirstTee []domain.PlayerID
	Result   roundrunner.RunRoundResult
	Timeline []roundrunner.DecisionEvent
}

type runReport struct {
	RoundID        string            `json:"round_id"`
	Mode           string            `json:"mode"`
	Course         string            `json:"course"`
	FirstTee       []domain.PlayerID `json:"first_tee"`
	HolesCompleted int               `json:"holes_completed"`
	TotalDecisions int               `json:"total_decisions"`
	TotalFallbacks int               `json:"total_fallbacks"`
	Standings      []runReportPlayer `json:"standings"`
	Holes          []runReportHole   `json:"holes"`
	Human          *domain.PlayerID  `json:"human,omitempty"`
}

type runReportPlayer struct {
	Player   domain.PlayerID `json:"player"`
	Quarters float64         `json:"quarters"`
}

type runReportDecision struct {
	Kind       roundrunner.DecisionKind `json:"kind"`
	Actor      domain.PlayerID          `json:"actor"`
	Action     roundrunner.Action       `json:"action"`
	Partner    domain.PlayerID          `json:"partner,omitempty"`
	Team       statemachine.Team        `json:"team,omitempty"`
	Multiplier int                      `json:"multiplier,omitempty"`
	Fallback   bool                     `json:"fallback,omitempty"`
}

type runReportHole struct {
	Hole      int                         `json:"hole"`
	Par       int                         `json:"par"`
	Teams     string                      `json:"teams"`
	Wager     int                         `json:"wager"`
	Halved    bool                        `json:"halved,omitempty"`
	Forfeit   bool                        `json:"forfeit,omitempty"`
	Decisions int                         `json:"decisions"`
	Fallbacks int                         `json:"fallbacks"`
	Gross     map[domain.PlayerID]int     `json:"gross,omitempty"`
	Quarters  map[domain.PlayerID]float64 `json:"quarters"`
	Timeline  []runReportDecision         `json:"timeline"`
}

func buildRunReport(input buildRunReportInput) runReport {
	report := runReport{
		RoundID:        input.RoundID,
		Mode:           input.Mode,
		Course:         input.Course,
		FirstTee:       input.FirstTee,
		HolesCompleted: input.Result.HolesCompleted,
		TotalDecisions: input.Result.TotalDecisions,
		TotalFallbacks: input.Result.TotalFallbacks,
		Standings:      mapStandings(input.Result.Standings),
		Holes:          make([]runReportHole, 0, len(input.Result.HoleSummaries)),
		Human:          input.Human,
	}

	timelineByHole := make(map[int][]runReportDecision)
	for _, event := range input.Timeline {
		timelineByHole[event.Hole] = append(timelineByHole[event.Hole], mapDecisionEvent(event))
	}

	for _, summary := range input.Result.HoleSummaries {
		report.Holes = append(report.Holes, buildRunReportHole(summary, timelineByHole[summary.Hole]))
	}
	return report
}

func buildRunReportHole(summary roundrunner.HoleSummary, timeline []runReportDecision) runReportHole {
	record := summary.Record
	return runReportHole{
		Hole:      summary.Hole,
		Par:       record.Par,
		Teams:     describeTeams(record.Teams),
		Wager:     record.Wager,
		Halved:    record.Halved,
		Forfeit:   record.Forfeit != nil,
		Decisions: summary.DecisionCount,
		Fallbacks: summary.FallbackCount,
		Gross:     record.GrossScores,
		Quarters:  record.Quarters,
		Timeline:  timeline,
	}
}

func mapDecisionEvent(event roundrunner.DecisionEvent) runReportDecision {
	return runReportDecision{
		Kind:       event.Kind,
		Actor:      event.Actor,
		Action:     event.Decision.Action,
		Partner:    event.Decision.Partner,
		Team:       event.Decision.Team,
		Multiplier: event.Decision.Multiplier,
		Fallback:   event.Fallback,
	}
}

// mapStandings orders players by quarters won, then by id.
func mapStandings(standings map[domain.PlayerID]float64) []runReportPlayer {
	out := make([]runReportPlayer, 0, len(standings))
	for id, quarters := range standings {
		out = append(out, runReportPlayer{Player: id, Quarters: quarters})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quarters == out[j].Quarters {
			return out[i].Player < out[j].Player
		}
		return out[i].Quarters > out[j].Quarters
	})
	return out
}

func describeTeams(formation statemachine.TeamFormation) string {
	switch f := formation.(type) {
	case statemachine.Partners:
		teams := fmt.Sprintf("%s vs %s", joinPlayers(f.Team1), joinPlayers(f.Team2))
		if len(f.SoloAardvarks) > 0 {
			teams += fmt.Sprintf(" (solo %s)", joinPlayers(f.SoloAardvarks))
		}
		return teams
	case statemachine.Solo:
		return fmt.Sprintf("%s solo vs %s", f.Captain, joinPlayers(f.Opponents))
	case statemachine.Pending:
		return fmt.Sprintf("%s waiting on %s", f.Captain, f.RequestedPartner)
	default:
		return "-"
	}
}

func renderRunOutput(report runReport) string {
	var b strings.Builder
	w := 50

	b.WriteString("\n")
	b.WriteString("  +" + strings.Repeat("=", w) + "+\n")
	fmt.Fprintf(&b, "  |%-*s|\n", w, centerReportText("WOLF GOAT PIG", w))
	b.WriteString("  +" + strings.Repeat("=", w) + "+\n")
	fmt.Fprintf(&b, "  |  Mode:    %-*s|\n", w-11, report.Mode)
	fmt.Fprintf(&b, "  |  Round:   %-*s|\n", w-11, report.RoundID)
	fmt.Fprintf(&b, "  |  Course:  %-*s|\n", w-11, report.Course)
	if report.Human != nil {
		fmt.Fprintf(&b, "  |  Human:   %-*s|\n", w-11, *report.Human)
	}
	fmt.Fprintf(&b, "  |  Tee:     %-*s|\n", w-11, joinPlayers(report.FirstTee))
	b.WriteString("  +" + strings.Repeat("=", w) + "+\n\n")

	for _, hole := range report.Holes {
		b.WriteString(renderHoleSection(hole))
	}

	b.WriteString(renderRunCompletion(report))
	return b.String()
}

func renderHoleSection(hole runReportHole) string {
	var b strings.Builder
	w := 56

	fmt.Fprintf(&b, "  +%s+\n", strings.Repeat("-", w))
	fmt.Fprintf(&b, "  |%-*s|\n", w, centerReportText(fmt.Sprintf("HOLE %d (par %d)", hole.Hole, hole.Par), w))
	fmt.Fprintf(&b, "  +%s+\n", strings.Repeat("-", w))

	result := "won"
	switch {
	case hole.Forfeit:
		result = "forfeit"
	case hole.Halved:
		result = "halved"
	}
	fmt.Fprintf(&b, "  |  %-*s|\n", w-2, "Teams: "+hole.Teams)
	fmt.Fprintf(&b, "  |  %-*s|\n", w-2, fmt.Sprintf("Wager: %d  Result: %s  Decisions: %d  Fallbacks: %d", hole.Wager, result, hole.Decisions, hole.Fallbacks))

	for _, id := range sortedPlayers(hole.Quarters) {
		line := fmt.Sprintf("    %-8s %+6.1f", id, hole.Quarters[id])
		if gross, ok := hole.Gross[id]; ok {
			line = fmt.Sprintf("    %-8s gross %-3d %+6.1f", id, gross, hole.Quarters[id])
		}
		fmt.Fprintf(&b, "  |%-*s|\n", w, line)
	}

	if len(hole.Timeline) > 0 {
		fmt.Fprintf(&b, "  |%-*s|\n", w, "  Decisions")
	}
	for idx, decision := range hole.Timeline {
		line := fmt.Sprintf("    %d) %s %s", idx+1, decision.Actor, decision.Action)
		switch {
		case decision.Partner != "":
			line += " " + string(decision.Partner)
		case decision.Team != 0:
			line += fmt.Sprintf(" team%d", decision.Team)
		case decision.Multiplier != 0:
			line += fmt.Sprintf(" x%d", decision.Multiplier)
		}
		if decision.Fallback {
			line += " (fallback)"
		}
		fmt.Fprintf(&b, "  |%-*s|\n", w, line)
	}

	fmt.Fprintf(&b, "  +%s+\n\n", strings.Repeat("-", w))
	return b.String()
}

func renderRunCompletion(report runReport) string {
	var b strings.Builder
	w := 50

	b.WriteString("  +" + strings.Repeat("=", w) + "+\n")
	fmt.Fprintf(&b, "  |%-*s|\n", w, centerReportText("ROUND COMPLETE", w))
	b.WriteString("  +" + strings.Repeat("=", w) + "+\n")
	fmt.Fprintf(&b, "  |  Holes Completed:  %-*d|\n", w-20, report.HolesCompleted)
	fmt.Fprintf(&b, "  |  Total Decisions:  %-*d|\n", w-20, report.TotalDecisions)
	fmt.Fprintf(&b, "  |  Total Fallbacks:  %-*d|\n", w-20, report.TotalFallbacks)
	for _, standing := range report.Standings {
		fmt.Fprintf(&b, "  |  %-*s|\n", w-2, fmt.Sprintf("%-8s %+7.1f quarters", standing.Player, standing.Quarters))
	}
	b.WriteString("  +" + strings.Repeat("=", w) + "+\n")
	return b.String()
}

func centerReportText(text string, width int) string {
	l := len([]rune(text))
	if l >= width {
		return text
	}
	left := (width - l) / 2
	right := width - l - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}

func writeRunReportJSON(path string, report runReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func sortedPlayers(quarters map[domain.PlayerID]float64) []domain.PlayerID {
	ids := make([]domain.PlayerID, 0, len(quarters))
	for id := range quarters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
