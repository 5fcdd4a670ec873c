// cmd/matchctl/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tax-matching-workers/internal/common/validation"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/models"

	"github.com/spf13/cobra"
)

var criteriaSchema = validation.MustCompileGo(validation.CriteriaProperty())

func newRegenerateCmd(factory serviceFactory) *cobra.Command {
	var (
		userID       string
		criteriaJSON string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "regenerate <diagnosisResultId>",
		Short: "Recompute and replace the matches of a diagnosis",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id to check")
	cmd.Flags().StringVar(&criteriaJSON, "criteria", "", "criteria JSON (default is the diagnosis's stored preferences)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of matches to keep (default from config)")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		criteria, err := parseCriteria(criteriaJSON)
		if err != nil {
			return err
		}
		return withService(factory, func(ctx context.Context, svc matchingService) (interface{}, error) {
			return svc.Regenerate(ctx, matching.Request{
				SourceID: args[0],
				UserID:   userID,
				Criteria: criteria,
				Limit:    limit,
			})
		})(c, args)
	}
	return cmd
}

func newReadCmd(factory serviceFactory) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "read <diagnosisResultId>",
		Short: "Print the stored matches of a diagnosis",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id to check")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withService(factory, func(ctx context.Context, svc matchingService) (interface{}, error) {
			return svc.Read(ctx, args[0], userID)
		})(c, args)
	}
	return cmd
}

func newRecommendCmd(factory serviceFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recommend <userId>",
		Short: "Print recommendations for the user's latest diagnosis",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", matching.DefaultRecommendationLimit, "maximum recommendations")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withService(factory, func(ctx context.Context, svc matchingService) (interface{}, error) {
			return svc.Recommend(ctx, args[0], limit)
		})(c, args)
	}
	return cmd
}

func newStatsCmd(factory serviceFactory) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print matching statistics",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&from, "from", "", "window start, RFC 3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "window end, RFC 3339 or YYYY-MM-DD")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		fromTime, err := parseDate(from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		toTime, err := parseDate(to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		if fromTime != nil && toTime != nil && fromTime.After(*toTime) {
			return fmt.Errorf("--from must not be after --to")
		}
		return withService(factory, func(ctx context.Context, svc matchingService) (interface{}, error) {
			return svc.Stats(ctx, fromTime, toTime)
		})(c, args)
	}
	return cmd
}

func parseCriteria(raw string) (*models.MatchingCriteria, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	result := criteriaSchema.ValidateJSON(raw)
	if !result.Valid {
		return nil, fmt.Errorf("invalid criteria: %s", strings.Join(result.GetErrorMessages(), "; "))
	}
	var criteria models.MatchingCriteria
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	return &criteria, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a date", raw)
}
