// Package xbet extracts match snapshots from the 1xbet dashboard
// markup.
package xbet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/oddsline/collector/internal/collector"
)

// ErrNoEventContainers is returned when neither the live nor the
// upcoming section is present, which means the page did not render.
var ErrNoEventContainers = errors.New("no event containers found")

const (
	liveContainerSelector     = `div#line_bets_on_main.c-events.greenBack`
	upcomingContainerSelector = `div#line_bets_on_main.c-events.blueBack`
)

var sportNames = map[string]string{
	"1":   "Football",
	"2":   "Ice Hockey",
	"3":   "Basketball",
	"4":   "Tennis",
	"10":  "Table Tennis",
	"17":  "Hockey",
	"29":  "Baseball",
	"66":  "Cricket",
	"85":  "FIFA",
	"95":  "Volleyball",
	"107": "Darts",
	"128": "Handball",
}

// Parser implements collector.Source for the 1xbet dashboard.
type Parser struct {
	logger *zap.Logger
}

// New builds a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse extracts the live and upcoming snapshots. A missing section
// yields an empty snapshot for that collection; a page with neither
// section is a parse failure.
func (p *Parser) Parse(html string) (map[string]collector.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	live, liveFound := p.parseSection(doc, liveContainerSelector, true)
	upcoming, upcomingFound := p.parseSection(doc, upcomingContainerSelector, false)
	if !liveFound && !upcomingFound {
		return nil, ErrNoEventContainers
	}

	p.logger.Debug("parsed snapshots",
		zap.Int("live", len(live)),
		zap.Int("upcoming", len(upcoming)),
	)
	return map[string]collector.Snapshot{
		collector.CollectionLive:     live,
		collector.CollectionUpcoming: upcoming,
	}, nil
}

func (p *Parser) parseSection(doc *goquery.Document, selector string, live bool) (collector.Snapshot, bool) {
	container := doc.Find(selector).First()
	if container.Length() == 0 {
		p.logger.Warn("event container not found", zap.String("selector", selector))
		return collector.Snapshot{}, false
	}

	snapshot := collector.Snapshot{}
	container.Find(".dashboard-champ-content").Each(func(_ int, section *goquery.Selection) {
		head := section.Find(".c-events__item_head").First()
		if head.Length() == 0 {
			return
		}
		identity, leagueURL := headerIdentity(head)
		betTypes := head.Find(".c-bets__title").Map(func(_ int, t *goquery.Selection) string {
			return strings.TrimSpace(t.Text())
		})

		if live {
			section.Find(".c-events__item_col .c-events__item_game").Each(func(_ int, match *goquery.Selection) {
				snapshot = append(snapshot, p.liveRecord(match, identity, leagueURL, betTypes))
			})
			return
		}

		currentDate := ""
		section.Find(".c-events__item_col").Each(func(_ int, item *goquery.Selection) {
			if date := item.Find(".c-events__date").First(); date.Length() > 0 {
				currentDate = strings.TrimSpace(date.Text())
				return
			}
			match := item.Find(".c-events__item_game").First()
			if match.Length() == 0 {
				return
			}
			snapshot = append(snapshot, p.upcomingRecord(match, identity, leagueURL, betTypes, currentDate))
		})
	})
	return snapshot, true
}

func headerIdentity(head *goquery.Selection) (collector.Identity, string) {
	identity := collector.Identity{Sport: "Unknown", Country: "International", League: "Unknown League"}

	if href, ok := head.Find(".icon use").First().Attr("xlink:href"); ok {
		id := strings.TrimPrefix(lastFragment(href), "sports_")
		if name, ok := sportNames[id]; ok {
			identity.Sport = name
		} else {
			identity.Sport = "Sport " + id
		}
	}
	if href, ok := head.Find(".flag-icon use").First().Attr("xlink:href"); ok {
		identity.Country = lastFragment(href)
	}

	league := head.Find(".c-events__liga").First()
	leagueURL := ""
	if league.Length() > 0 {
		identity.League = strings.TrimSpace(league.Text())
		leagueURL, _ = league.Attr("href")
	}
	return identity, leagueURL
}

func (p *Parser) liveRecord(match *goquery.Selection, identity collector.Identity, leagueURL string, betTypes []string) collector.RawRecord {
	rec := newRecord(match, identity, leagueURL)

	if status := match.Find(".c-events__time").First(); status.Length() > 0 {
		rec.Fields["status"] = squashSpace(status.Text())
	}

	var scores []string
	match.Find(".c-events-scoreboard__cell--all").Each(func(_ int, cell *goquery.Selection) {
		if v := strings.TrimSpace(cell.Text()); v != "" {
			scores = append(scores, v)
		}
	})
	if len(scores) > 0 {
		rec.Fields["score"] = strings.Join(scores, " - ")
	}

	extractOdds(match, betTypes, rec.Fields)
	return rec
}

func (p *Parser) upcomingRecord(match *goquery.Selection, identity collector.Identity, leagueURL string, betTypes []string, matchDate string) collector.RawRecord {
	rec := newRecord(match, identity, leagueURL)

	if matchDate != "" {
		rec.Fields["match_date"] = matchDate
	}
	if start := match.Find(".c-events-time__val").First(); start.Length() > 0 {
		rec.Fields["start_time"] = strings.TrimSpace(start.Text())
	}
	if startsIn := match.Find(`div[title^="Starts in"]`).First(); startsIn.Length() > 0 {
		if title, ok := startsIn.Attr("title"); ok {
			rec.Fields["starts_in"] = strings.TrimPrefix(title, "Starts in ")
		}
	}

	extractOdds(match, betTypes, rec.Fields)
	return rec
}

func newRecord(match *goquery.Selection, identity collector.Identity, leagueURL string) collector.RawRecord {
	rec := collector.RawRecord{Identity: identity, Fields: map[string]string{}}
	if leagueURL != "" {
		rec.Fields["league_url"] = leagueURL
	}

	teams := match.Find(".c-events__teams .c-events__team")
	if teams.Length() >= 2 {
		rec.Identity.Team1 = strings.TrimSpace(teams.Eq(0).Text())
		rec.Identity.Team2 = strings.TrimSpace(teams.Eq(1).Text())
	}

	if href, ok := match.Find("a.c-events__name").First().Attr("href"); ok {
		rec.Fields["match_url"] = href
	}
	if icons := match.Find(".c-events__ico"); icons.Length() > 0 {
		rec.Fields["has_video"] = fmt.Sprintf("%t", icons.HasClass("c-events__ico_video"))
		rec.Fields["has_statistics"] = fmt.Sprintf("%t", icons.HasClass("c-events__ico--statistics"))
	}
	return rec
}

// extractOdds reads the odds cells twice: keyed by market title (or
// column title when the cell has none) and by position, matching the
// original feed layout where both keys are consumed downstream.
func extractOdds(match *goquery.Selection, betTypes []string, fields map[string]string) {
	cells := match.Find(".c-bets .c-bets__bet")
	if cells.Length() == 0 {
		cells = match.Find(".c-bets__bet")
	}
	if cells.Length() == 0 {
		cells = match.Parent().Find(".c-bets__bet")
	}

	position := 0
	cells.Each(func(i int, cell *goquery.Selection) {
		if cell.HasClass("non") {
			return
		}
		value := strings.TrimSpace(cell.Find(".c-bets__inner").First().Text())
		if value == "" || value == "–" || value == "-" {
			return
		}

		betType := ""
		if title, ok := cell.Attr("title"); ok && strings.TrimSpace(title) != "" {
			betType = strings.TrimSpace(title)
		} else if i < len(betTypes) {
			betType = betTypes[i]
		} else {
			betType = fmt.Sprintf("odd_%d", i+1)
		}

		key := "odd_" + strings.ToLower(strings.ReplaceAll(betType, " ", "_"))
		fields[key] = value

		position++
		fields[fmt.Sprintf("odd_position_%d", position)] = value
	})
}

// Leagues extracts the deduplicated league catalog across both
// sections.
func (p *Parser) Leagues(html string) []collector.League {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.logger.Warn("league parse failed", zap.Error(err))
		return nil
	}

	seen := make(map[string]bool)
	var leagues []collector.League
	doc.Find(".c-events__item_head").Each(func(_ int, head *goquery.Selection) {
		if head.Find(".c-events__liga").Length() == 0 {
			return
		}
		identity, leagueURL := headerIdentity(head)
		id := identity.Sport + "_" + identity.League
		if seen[id] {
			return
		}
		seen[id] = true
		leagues = append(leagues, collector.League{
			ID:      id,
			Name:    identity.League,
			URL:     leagueURL,
			Sport:   identity.Sport,
			Country: identity.Country,
			Top:     head.ParentsFiltered(".top-champs-banner").Length() > 0,
		})
	})
	return leagues
}

func lastFragment(href string) string {
	if i := strings.LastIndex(href, "#"); i >= 0 {
		return href[i+1:]
	}
	return href
}

func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
