package dto

import "github.com/spec-kit/mentor-queue/internal/service"

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	Rank               int     `json:"rank"`
	NumResolvedTickets int     `json:"num_resolved_tickets"`
	NumRatings         int     `json:"num_ratings"`
	Name               string  `json:"name"`
	AverageRating      float64 `json:"average_rating"`
}

// NewRanking projects leaderboard entries.
func NewRanking(entries []service.RankEntry) []RankingEntry {
	out := make([]RankingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RankingEntry{
			Rank:               e.Rank,
			NumResolvedTickets: e.Resolved,
			NumRatings:         e.Ratings,
			Name:               e.Name,
			AverageRating:      e.AverageRating,
		})
	}
	return out
}

// TicketStatsResponse is the body of /admin/ticketdata.
type TicketStatsResponse struct {
	Total         int     `json:"total"`
	AverageRating float64 `json:"averageRating"`
	AverageTime   float64 `json:"averageTime"`
}

// NewTicketStatsResponse projects stats.
func NewTicketStatsResponse(s *service.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{Total: s.Total, AverageRating: s.AverageRating, AverageTime: s.AverageTime}
}
