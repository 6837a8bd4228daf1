package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"

	"github.com/ogpredict/geofence/internal/telemetry"
	"github.com/ogpredict/geofence/server"
	"github.com/ogpredict/geofence/tilestore"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:        "geofence",
		Description: "Ground-track tile classifier: which territory or point-of-interest tile a satellite subpoint falls in",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the classification api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "territory",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "poi",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "poi-names",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:        "telemetry.endpoint",
						DefaultText: "",
					},
				},
				Action: serve,
			},
			{
				Name:    "classify",
				Aliases: []string{"c"},
				Usage:   "classify a point track file against a tile set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "territory",
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "poi",
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "poi-names",
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "points",
						Aliases:   []string{"p"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   "-",
					},
					&cli.StringFlag{
						Name: "label",
					},
					&cli.StringFlag{
						Name: "name",
					},
					&cli.IntFlag{
						Name:        "workers",
						Aliases:     []string{"t"},
						DefaultText: "auto",
					},
					&cli.StringFlag{
						Name:        "stats",
						DefaultText: "",
						Usage:       "write a resource-usage report to this file",
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name: "pprof.profile",
					},
				},
				Action: classify,
			},
			{
				Name:  "add-poi",
				Usage: "append a point-of-interest tile to the csv set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "poi",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "poi-names",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Required: true,
					},
					&cli.StringFlag{
						Name: "type",
					},
					&cli.StringFlag{
						Name:     "tile-km",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "lat",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "lon",
						Required: true,
					},
				},
				Action: addPOI,
			},
			{
				Name:  "synth",
				Usage: "generate a synthetic point track for benchmarks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  "spacing",
						Value: "0.5",
						Usage: "minimum point spacing in degrees",
					},
				},
				Action: synth,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx *cli.Context) error {
	tel, err := telemetry.Setup(ctx.Context, "geofence", ctx.String("telemetry.endpoint"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Shutdown(ctx.Context)

	return server.Run(ctx.Context, ctx.String("listen"), server.Config{
		TerritoryPath: ctx.String("territory"),
		POIPath:       ctx.String("poi"),
		POINamesPath:  ctx.String("poi-names"),
	})
}

func addPOI(ctx *cli.Context) error {
	tileKm, err1 := strconv.ParseFloat(ctx.String("tile-km"), 64)
	lat, err2 := strconv.ParseFloat(ctx.String("lat"), 64)
	lon, err3 := strconv.ParseFloat(ctx.String("lon"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return errors.New("tile-km, lat and lon must be numeric")
	}

	region, err := tilestore.AppendToCSV(
		ctx.String("poi"),
		ctx.String("name"), ctx.String("type"),
		tileKm, lat, lon,
	)
	if err != nil {
		return err
	}
	if err := tilestore.AppendNameToCSV(ctx.String("poi-names"), ctx.String("name"), ctx.String("type")); err != nil {
		return err
	}

	cLat, cLon := region.Centroid()
	slog.Info("poi appended", "name", ctx.String("name"), "lat", cLat, "lon", cLon)
	return nil
}

func startProfiling(ctx *cli.Context) (stop func(), err error) {
	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			slog.Info("Starting pprof server", "listen", pprofListen)
			if err := http.ListenAndServe(pprofListen, nil); err != nil {
				slog.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	if !ctx.Bool("pprof.profile") {
		return func() {}, nil
	}
	f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating pprof file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("error starting pprof: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
