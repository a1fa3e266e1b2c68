package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/cloud"
	"github.com/gyeh/npi-directory/internal/export"
	"github.com/gyeh/npi-directory/internal/progress"
	"github.com/gyeh/npi-directory/internal/verify"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		outputFile  string
		state, city string
		limit       int
		workers     int
		rps         float64
		noProgress  bool
		s3Bucket    string
		s3Key       string
		region      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every matching provider to NDJSON (gzip when the file ends in .gz)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("rps") {
				rps = a.cfg.RPS
			}
			if s3Bucket == "" {
				s3Bucket = a.cfg.S3Bucket
			}
			if !cmd.Flags().Changed("region") {
				region = a.cfg.Region
			}

			client := a.apiClient(rps)
			defer client.Close()

			exp := &export.Exporter{
				Fetcher:  client,
				Workers:  workers,
				Progress: progress.New(noProgress),
			}
			if s3Bucket != "" {
				s3c, err := cloud.NewS3Client(cmd.Context(), s3Bucket, region)
				if err != nil {
					return err
				}
				if s3Key == "" {
					s3Key = cloud.DefaultKey(outputFile, time.Now())
				}
				exp.Uploader = s3c
				exp.UploadKey = s3Key
			}

			q := api.Query{Limit: limit, State: state, City: city}
			sum, err := exp.Run(cmd.Context(), q, outputFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\nExport complete: %d providers from %d pages in %.1fs (%s)\n",
				sum.Records, sum.Pages, sum.Elapsed.Seconds(), humanBytes(sum.Bytes))
			fmt.Fprintf(os.Stderr, "Written to %s\n", sum.Path)
			if sum.Uploaded != "" {
				fmt.Fprintf(os.Stderr, "Uploaded to s3://%s/%s\n", s3Bucket, sum.Uploaded)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (.jsonl or .jsonl.gz)")
	cmd.Flags().StringVar(&state, "state", "", "Filter by practice state")
	cmd.Flags().StringVar(&city, "city", "", "Filter by practice city")
	cmd.Flags().IntVar(&limit, "limit", 100, "Providers per page request")
	cmd.Flags().IntVar(&workers, "workers", export.DefaultWorkers, "Concurrent page fetches")
	cmd.Flags().Float64Var(&rps, "rps", 5, "Request rate limit per second (default from NPIDIR_RPS)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "Upload the finished export to this bucket (default from NPIDIR_S3_BUCKET)")
	cmd.Flags().StringVar(&s3Key, "s3-key", "", "Object key (default exports/<date>/<file name>)")
	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region (default from AWS_REGION)")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		hashes bool
		tmpDir string
	)

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an export or page dump for duplicate NPIs and stale data hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			rep, err := verify.File(cmd.Context(), args[0], verify.Options{Hashes: hashes, TmpDir: tmpDir})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records:          %d\n", rep.Records)
			fmt.Fprintf(out, "Duplicate NPIs:   %d%s\n", rep.Duplicates, listNPIs(rep.DuplicateNPIs))
			fmt.Fprintf(out, "Missing NPI:      %d\n", rep.MissingNPI)
			fmt.Fprintf(out, "Malformed:        %d\n", rep.Malformed)
			if hashes {
				fmt.Fprintf(out, "Hash mismatches:  %d%s\n", rep.HashMismatches, listNPIs(rep.MismatchNPIs))
				fmt.Fprintf(out, "Hash missing:     %d\n", rep.HashMissing)
				fmt.Fprintf(out, "Hash unverified:  %d\n", rep.HashUnverifiable)
			}
			fmt.Fprintf(out, "Checked in %.1fs\n", time.Since(start).Seconds())

			if !rep.OK() {
				return fmt.Errorf("verification found problems in %s", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hashes, "hashes", false, "Recompute each record's data_hash")
	cmd.Flags().StringVar(&tmpDir, "tmp-dir", "", "Temp directory for split page dumps (default: system temp)")

	return cmd
}

func listNPIs(npis []int64) string {
	if len(npis) == 0 {
		return ""
	}
	return fmt.Sprintf(" %v", npis)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
