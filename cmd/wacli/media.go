package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/errs"
	"github.com/wacli/wacli/internal/out"
)

func newMediaCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Download media referenced by stored messages",
	}
	cmd.AddCommand(newMediaDownloadCmd(flags))
	return cmd
}

func newMediaDownloadCmd(flags *rootFlags) *cobra.Command {
	var chat string
	var id string
	var output string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the media attached to one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" || id == "" {
				return errs.New(errs.InvalidArgument, "--chat and --id are required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			info, err := a.DB().GetMediaDownloadInfo(chat, id)
			if err != nil {
				return err
			}
			if info.DirectPath == "" {
				return fmt.Errorf("message %s/%s has no media", chat, id)
			}
			if !info.DownloadedAt.IsZero() && info.LocalPath != "" {
				if flags.asJSON {
					return out.WriteJSON(os.Stdout, map[string]any{
						"path":   info.LocalPath,
						"cached": true,
					})
				}
				fmt.Fprintf(os.Stdout, "Already downloaded: %s\n", info.LocalPath)
				return nil
			}

			if err := a.EnsureAuthed(); err != nil {
				return err
			}
			if err := a.Connect(ctx, false, nil); err != nil {
				return err
			}

			targetPath := output
			if targetPath == "" {
				name := info.Filename
				if name == "" {
					name = info.MsgID
				}
				targetPath = filepath.Join(a.StoreDir(), "media", "manual", name)
			}

			written, err := a.WA().DownloadMediaToFile(
				ctx,
				info.DirectPath,
				info.FileEncSHA256,
				info.FileSHA256,
				info.MediaKey,
				info.FileLength,
				info.MediaType,
				mmsType(info.MediaType),
				targetPath,
			)
			if err != nil {
				return err
			}
			if err := a.DB().MarkMediaDownloaded(chat, id, targetPath, time.Now().UTC()); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{
					"path":   targetPath,
					"bytes":  written,
					"cached": false,
				})
			}
			fmt.Fprintf(os.Stdout, "Downloaded %s (%s).\n", targetPath, humanize.Bytes(uint64(written)))
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat JID")
	cmd.Flags().StringVar(&id, "id", "", "message ID")
	cmd.Flags().StringVar(&output, "output", "", "destination file path (default: <store>/media/manual/<filename>)")
	return cmd
}

// mmsType maps a stored media_type to whatsmeow's MMS type string, mirroring
// internal/app/media.go's mapping for its background worker.
func mmsType(mediaType string) string {
	switch mediaType {
	case "video", "gif":
		return "video"
	default:
		return mediaType
	}
}
