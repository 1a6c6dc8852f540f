package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/reelarr/internal/models"
	"github.com/jmylchreest/reelarr/internal/service"
)

var catalogFlags struct {
	contentType string
	search      string
	offset      int
	limit       int
	season      int
	page        int
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the catalog",
	Long:  `Commands for browsing the series, movies and episodes stored in the catalog.`,
}

var catalogSeriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List series and movies",
	Long: `List series and movies, most recently posted first.

  reelarr catalog series --type movie
  reelarr catalog series --search "king"`,
	Args: cobra.NoArgs,
	RunE: runCatalogSeries,
}

var catalogEpisodesCmd = &cobra.Command{
	Use:   "episodes <series-id>",
	Short: "List the episodes of a series",
	Long: `List a page of episodes of a series or the parts of a movie, highest
episode number first, with the link to each source post.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogEpisodes,
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals",
	Args:  cobra.NoArgs,
	RunE:  runCatalogStats,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSeriesCmd, catalogEpisodesCmd, catalogStatsCmd)

	catalogSeriesCmd.Flags().StringVar(&catalogFlags.contentType, "type", "", "content type filter (series or movie)")
	catalogSeriesCmd.Flags().StringVar(&catalogFlags.search, "search", "", "name substring; Arabic spelling variants match")
	catalogSeriesCmd.Flags().IntVar(&catalogFlags.offset, "offset", 0, "number of series to skip")
	catalogSeriesCmd.Flags().IntVar(&catalogFlags.limit, "limit", service.DefaultSeriesListLimit, "page size")

	catalogEpisodesCmd.Flags().IntVar(&catalogFlags.season, "season", 0, "season or part number (0 lists all)")
	catalogEpisodesCmd.Flags().IntVar(&catalogFlags.page, "page", 1, "page number")
}

// withCatalog opens the catalog for a read-only command.
func withCatalog(cmd *cobra.Command, fn func(ctx context.Context, catalog *service.CatalogService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, service.NewCatalogService(a.catalog).WithLogger(a.logger))
}

func runCatalogSeries(cmd *cobra.Command, _ []string) error {
	contentType, err := models.ParseContentType(catalogFlags.contentType)
	if err != nil {
		return err
	}

	return withCatalog(cmd, func(ctx context.Context, catalog *service.CatalogService) error {
		page, err := catalog.ListSeries(ctx, service.SeriesQuery{
			Type:   contentType,
			Search: catalogFlags.search,
			Offset: catalogFlags.offset,
			Limit:  catalogFlags.limit,
		})
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(page.Items))
		for _, s := range page.Items {
			rows = append(rows, []string{
				s.ID.String(),
				s.Name,
				string(s.ContentType),
				itoa(s.EpisodeCount),
				itoa(s.LastMessageID),
			})
		}
		out := cmd.OutOrStdout()
		renderTable(out, []string{"ID", "Name", "Type", "Episodes", "Last Message"}, rows, 3, 4)
		fmt.Fprintf(out, "%d-%d of %d\n", min(page.Offset+1, int(page.Total)), page.Offset+len(page.Items), page.Total)
		return nil
	})
}

func runCatalogEpisodes(cmd *cobra.Command, args []string) error {
	id, err := models.ParseULID(args[0])
	if err != nil {
		return fmt.Errorf("invalid series id %q: %w", args[0], err)
	}

	return withCatalog(cmd, func(ctx context.Context, catalog *service.CatalogService) error {
		series, err := catalog.GetSeries(ctx, id)
		if err != nil {
			return err
		}
		page, err := catalog.ListEpisodes(ctx, id, catalogFlags.season, catalogFlags.page)
		if err != nil {
			return err
		}

		label := "Season"
		if series.ContentType == models.ContentTypeMovie {
			label = "Part"
		}
		rows := make([][]string, 0, len(page.Items))
		for _, ep := range page.Items {
			rows = append(rows, []string{
				itoa(ep.SeasonNumber),
				itoa(ep.EpisodeNumber),
				ep.ChannelID,
				itoa(ep.MessageID),
				ep.DeepLink(),
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", series.Name, series.ContentType)
		renderTable(out, []string{label, "Episode", "Channel", "Message", "Link"}, rows, 0, 1, 3)
		totalPages := (page.Total + int64(page.PageSize) - 1) / int64(page.PageSize)
		fmt.Fprintf(out, "page %d of %d (%d episodes)\n", page.Page, max(totalPages, 1), page.Total)
		return nil
	})
}

func runCatalogStats(cmd *cobra.Command, _ []string) error {
	return withCatalog(cmd, func(ctx context.Context, catalog *service.CatalogService) error {
		stats, err := catalog.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderTable(out, []string{"Series", "Movies", "Episodes"}, [][]string{{
			itoa(stats.Series), itoa(stats.Movies), itoa(stats.Episodes),
		}}, 0, 1, 2)

		if len(stats.Channels) == 0 {
			return nil
		}
		rows := make([][]string, 0, len(stats.Channels))
		for _, ch := range stats.Channels {
			rows = append(rows, []string{ch.ChannelID, itoa(ch.EpisodeCount), itoa(ch.LastMessageID)})
		}
		renderTable(out, []string{"Channel", "Episodes", "Last Message"}, rows, 1, 2)
		return nil
	})
}
