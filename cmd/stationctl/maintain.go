package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stationhub/internal/app"
	database "stationhub/internal/db"
	"stationhub/internal/images"
	"stationhub/internal/models"
	"stationhub/internal/station"
)

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Recompute quality scores",
	Long: `Recomputes quality scores from unresolved feedback and station metadata.
Stations that fall under the visibility policy are hidden.

  stationctl recalculate --all
  stationctl recalculate --id 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all := viper.GetBool("recalculate.all")
		id := viper.GetUint("recalculate.id")
		if all == (id != 0) {
			return errors.New("pass exactly one of --all or --id")
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			if all {
				processed, hidden, err := a.Service.RecalculateAll(ctx, a.Config.Quality.BatchSize)
				fmt.Fprintf(cmd.OutOrStdout(), "processed=%d hidden=%d\n", processed, hidden)
				return err
			}
			out, err := a.Service.Recalculate(ctx, id, station.TriggerManual)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "station=%d score=%.2f feedback=%d hidden=%t\n",
				out.Station.ID, out.Result.Overall, out.Result.FeedbackCount, out.Hidden)
			return nil
		})
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <station-id>",
	Short: "Connect to a stream and store its codec and bitrate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid station id %q", args[0])
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			var st models.Station
			if err := a.DB.DB.WithContext(ctx).First(&st, id).Error; err != nil {
				return err
			}
			res, err := a.Prober.Probe(ctx, st.StreamURL)
			if err != nil {
				return err
			}

			if fields := res.Fields(); len(fields) > 0 {
				if err := a.DB.DB.WithContext(ctx).Model(&st).Updates(fields).Error; err != nil {
					return err
				}
			}
			if _, err := a.Service.Recalculate(ctx, st.ID, station.TriggerManual); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "station=%d codec=%s bitrate=%d content_type=%s\n",
				st.ID, res.Codec, res.Bitrate, res.ContentType)
			return nil
		})
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Download and store artwork for stations without a local image",
	Long: `Downloads each station's logo (or favicon), stores a thumbnail and points
local_image_url at it. Stations whose stored thumbnail still exists are
skipped unless --force is given.

  stationctl images
  stationctl images --id 42 --force
  stationctl images --prune     # also delete thumbnails no station uses`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id := viper.GetUint("images.id")
		force := viper.GetBool("images.force")
		prune := viper.GetBool("images.prune")

		return withApp(func(ctx context.Context, a *app.App) error {
			query := a.DB.DB.WithContext(ctx).Model(&models.Station{})
			if id != 0 {
				query = query.Where("id = ?", id)
			} else {
				query = query.Where("logo <> '' OR favicon <> ''")
			}

			var stations []models.Station
			if err := query.Order("id ASC").Find(&stations).Error; err != nil {
				return err
			}

			var stored, skipped, failed int
			for i := range stations {
				if ctx.Err() != nil {
					break
				}
				st := &stations[i]
				if !force && hasStoredImage(ctx, a, st) {
					skipped++
					continue
				}
				url, err := a.Images.Fetch(ctx, st)
				if err != nil {
					slog.Warn("artwork skipped", "station_id", st.ID, "error", err)
					failed++
					continue
				}
				if err := a.DB.DB.WithContext(ctx).Model(st).Update("local_image_url", url).Error; err != nil {
					return err
				}
				if _, err := a.Service.Recalculate(ctx, st.ID, station.TriggerManual); err != nil {
					slog.Warn("rescore after artwork failed", "station_id", st.ID, "error", err)
				}
				stored++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored=%d skipped=%d failed=%d\n", stored, skipped, failed)
			if err := ctx.Err(); err != nil || !prune {
				return err
			}

			removed, err := pruneImages(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned=%d\n", removed)
			return nil
		})
	},
}

// hasStoredImage reports whether st already points at a thumbnail that exists.
func hasStoredImage(ctx context.Context, a *app.App, st *models.Station) bool {
	key, ok := a.Storage.KeyFromURL(st.LocalImageURL)
	if !ok {
		return false
	}
	exists, err := a.Storage.ImageExists(ctx, key)
	if err != nil {
		slog.Debug("artwork existence check failed", "station_id", st.ID, "error", err)
		return false
	}
	return exists
}

// pruneImages deletes thumbnails not referenced by any live station.
func pruneImages(ctx context.Context, a *app.App) (int, error) {
	var urls []string
	if err := a.DB.DB.WithContext(ctx).Model(&models.Station{}).
		Where("local_image_url <> ''").
		Pluck("local_image_url", &urls).Error; err != nil {
		return 0, err
	}

	keep := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := a.Storage.KeyFromURL(u); ok {
			keep[key] = struct{}{}
		}
	}
	return a.Storage.PruneImages(ctx, images.KeyPrefix, func(key string) bool {
		_, ok := keep[key]
		return ok
	})
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the bootstrap admin account if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			user := viper.GetString("admin.username")
			if user == "" {
				user = a.Config.Auth.AdminUser
			}
			pass := viper.GetString("admin.password")
			if pass == "" {
				pass = a.Config.Auth.AdminPassword
			}
			return database.SeedAdminUser(a.DB.DB.WithContext(ctx), user, pass)
		})
	},
}

func init() {
	recalculateCmd.Flags().Bool("all", false, "Rescore every station")
	recalculateCmd.Flags().Uint("id", 0, "Rescore one station")
	viper.BindPFlag("recalculate.all", recalculateCmd.Flags().Lookup("all"))
	viper.BindPFlag("recalculate.id", recalculateCmd.Flags().Lookup("id"))

	imagesCmd.Flags().Uint("id", 0, "Only this station")
	imagesCmd.Flags().Bool("force", false, "Fetch again even if the stored thumbnail exists")
	imagesCmd.Flags().Bool("prune", false, "Delete stored thumbnails no station references")
	viper.BindPFlag("images.id", imagesCmd.Flags().Lookup("id"))
	viper.BindPFlag("images.force", imagesCmd.Flags().Lookup("force"))
	viper.BindPFlag("images.prune", imagesCmd.Flags().Lookup("prune"))

	seedAdminCmd.Flags().String("username", "", "Admin username (default auth.admin_user)")
	seedAdminCmd.Flags().String("password", "", "Admin password (default auth.admin_password)")
	viper.BindPFlag("admin.username", seedAdminCmd.Flags().Lookup("username"))
	viper.BindPFlag("admin.password", seedAdminCmd.Flags().Lookup("password"))
}
