package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mytalk-labs/mytalk/internal/cli/output"
	"github.com/mytalk-labs/mytalk/internal/drive"
	"github.com/mytalk-labs/mytalk/internal/drivesync"
)

// NewDriveCommand creates the drive command group.
func NewDriveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Back up your library to Google Drive",
		Long: `Back up the scripts folder to a Google Drive folder and restore it
on another machine.

Authorization uses an OAuth installed-app credential. Put the
credentials.json from Google Cloud Console into your data directory,
then run 'mytalk drive login'.`,
	}

	cmd.AddCommand(newDriveLoginCommand())
	cmd.AddCommand(newDriveLogoutCommand())
	cmd.AddCommand(newDriveTestCommand())
	cmd.AddCommand(newDrivePushCommand())
	cmd.AddCommand(newDrivePullCommand())
	cmd.AddCommand(newDriveLsCommand())
	cmd.AddCommand(newDriveStatusCommand())

	return cmd
}

func newDriveLoginCommand() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize MyTalk to use your Google Drive",
		Long: `Start the OAuth login flow. A browser opens for authorization and a
local listener receives the redirect.

With --no-browser the authorization URL is printed instead, and the
redirect URL (or bare code) can be pasted back on stdin.`,
		Example: `  mytalk drive login
  mytalk drive login --no-browser   # headless machines`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveLogin(cmd, noBrowser)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")

	return cmd
}

func runDriveLogin(cmd *cobra.Command, noBrowser bool) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer
	loc := cmdCtx.Loc

	auth := newDriveAuth(cmdCtx)
	opts := drive.LoginOptions{
		OnURL: func(url string) {
			r.Println(loc.T("drive_open_url", nil))
			r.Println("  " + url)
			r.Println()
			r.Muted(loc.T("drive_paste_code", nil))
		},
		Input: cmd.InOrStdin(),
	}
	if !noBrowser {
		opts.OpenBrowser = openBrowser
	}

	if err := auth.Login(cmd.Context(), opts); err != nil {
		return err
	}

	r.Success(loc.T("drive_connected", nil))
	return nil
}

func newDriveLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored Google Drive token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			if err := newDriveAuth(cmdCtx).Logout(); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(cmdCtx.Loc.T("drive_logged_out", nil))
			return nil
		},
	}
}

func newDriveTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the Google Drive connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveTest(cmd)
		},
	}
}

func runDriveTest(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	auth := newDriveAuth(cmdCtx)
	svc, err := auth.Service(cmd.Context())
	if err != nil {
		return err
	}

	client := drive.NewClient(svc, cmdCtx.Logger)
	email, used, limit, err := client.About(cmd.Context())
	if err != nil {
		return err
	}

	r.Success(cmdCtx.Loc.T("drive_connected", nil))
	r.StatusLine("account", "ok", email)
	if limit > 0 {
		r.StatusLine("storage", "ok", fmt.Sprintf("%s of %s used", formatBytes(used), formatBytes(limit)))
	}
	return nil
}

func newDrivePushCommand() *cobra.Command {
	var (
		prune    bool
		folderID string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload new and changed scripts to Drive",
		Long: `Upload the scripts folder to the backup folder on Drive. Files are
compared by MD5 checksum; unchanged files are skipped.

With --prune, remote files with no local counterpart are deleted.`,
		Example: `  mytalk drive push
  mytalk drive push --prune
  mytalk drive push --folder-id https://drive.google.com/drive/folders/abc123`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveSync(cmd, folderID, "push", prune)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Delete remote files that no longer exist locally")
	cmd.Flags().StringVar(&folderID, "folder-id", "", "Drive folder id or URL (default: the configured folder name)")

	return cmd
}

func newDrivePullCommand() *cobra.Command {
	var folderID string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download missing and changed scripts from Drive",
		Example: `  mytalk drive pull
  mytalk drive pull --folder-id abc123`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveSync(cmd, folderID, "pull", false)
		},
	}

	cmd.Flags().StringVar(&folderID, "folder-id", "", "Drive folder id or URL (default: the configured folder name)")

	return cmd
}

// runDriveSync drives a push or pull pass with live status lines.
func runDriveSync(cmd *cobra.Command, folderID, direction string, prune bool) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer
	loc := cmdCtx.Loc

	syncer, err := newDriveSyncer(cmd, cmdCtx, folderID)
	if err != nil {
		return err
	}

	opts := drivesync.Options{
		Prune: prune,
		OnChange: func(c drivesync.Change) {
			r.StatusLine(c.Name, "success", string(c.Action))
		},
	}

	var result *drivesync.Result
	if direction == "push" {
		result, err = syncer.Push(cmd.Context(), opts)
	} else {
		result, err = syncer.Pull(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}

	if len(result.Changes) == 0 {
		r.Success(loc.T("drive_in_sync", nil))
		return nil
	}

	r.Println()
	if direction == "push" {
		r.Success(loc.T("drive_push_summary", map[string]any{
			"Uploaded": result.Count(drivesync.ActionUpload),
			"Updated":  result.Count(drivesync.ActionUpdate),
			"Pruned":   result.Count(drivesync.ActionDelete),
			"InSync":   result.InSync,
		}))
	} else {
		r.Success(loc.T("drive_pull_summary", map[string]any{
			"Downloaded": result.Count(drivesync.ActionDownload),
			"InSync":     result.InSync,
		}))
	}
	return nil
}

func newDriveLsCommand() *cobra.Command {
	var folderID string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the files in the Drive backup folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveLs(cmd, folderID)
		},
	}

	cmd.Flags().StringVar(&folderID, "folder-id", "", "Drive folder id or URL (default: the configured folder name)")

	return cmd
}

func runDriveLs(cmd *cobra.Command, folderID string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	auth := newDriveAuth(cmdCtx)
	svc, err := auth.Service(cmd.Context())
	if err != nil {
		return err
	}
	client := drive.NewClient(svc, cmdCtx.Logger)

	id := folderID
	if id != "" {
		id, err = drive.FolderFromURL(id)
		if err != nil {
			return err
		}
	} else {
		id, err = client.EnsureFolder(cmd.Context(), cmdCtx.Cfg.Drive.Folder)
		if err != nil {
			return err
		}
	}

	files, err := client.List(cmd.Context(), id)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		type fileInfo struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Size     int64  `json:"size"`
			Modified string `json:"modified,omitempty"`
		}
		infos := make([]fileInfo, 0, len(files))
		for _, f := range files {
			infos = append(infos, fileInfo{ID: f.ID, Name: f.Name, Size: f.Size, Modified: f.ModifiedTime})
		}
		return r.JSON(infos)
	}

	if len(files) == 0 {
		r.Muted("The backup folder is empty. Run 'mytalk drive push' first.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Size", "Modified"})
	for _, f := range files {
		t.AppendRow(table.Row{f.Name, formatBytes(f.Size), f.ModifiedTime})
	}
	t.Render()
	return nil
}

func newDriveStatusCommand() *cobra.Command {
	var folderID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what a push would change",
		Long: `Compare the local scripts folder with the Drive backup folder and
show the pending changes without applying them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDriveStatus(cmd, folderID)
		},
	}

	cmd.Flags().StringVar(&folderID, "folder-id", "", "Drive folder id or URL (default: the configured folder name)")

	return cmd
}

func runDriveStatus(cmd *cobra.Command, folderID string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer
	loc := cmdCtx.Loc

	syncer, err := newDriveSyncer(cmd, cmdCtx, folderID)
	if err != nil {
		return err
	}

	state, err := syncer.State()
	if err != nil {
		return err
	}
	result, err := syncer.Status(cmd.Context())
	if err != nil {
		return err
	}

	r.Header(1, "Drive Backup Status")
	if state.FolderName != "" {
		r.StatusLine("folder", "ok", state.FolderName)
	}
	if state.LastPush != nil {
		r.StatusLine("last push", "ok", state.LastPush.Local().Format("2006-01-02 15:04"))
	}
	if state.LastPull != nil {
		r.StatusLine("last pull", "ok", state.LastPull.Local().Format("2006-01-02 15:04"))
	}

	if len(result.Changes) == 0 {
		r.Println()
		r.Success(loc.T("drive_in_sync", nil))
		return nil
	}

	r.Println()
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Action", "File", "Why"})
	for _, c := range result.Changes {
		t.AppendRow(table.Row{string(c.Action), c.Name, c.Reason})
	}
	t.Render()
	r.Muted(fmt.Sprintf("%d file(s) already in sync. Run 'mytalk drive push' to apply.", result.InSync))
	return nil
}

// Shared drive helpers

func newDriveAuth(cmdCtx *CommandContext) *drive.Auth {
	return drive.NewAuth(cmdCtx.Cfg.Drive.Credentials, cmdCtx.Cfg.Drive.Token, cmdCtx.Logger)
}

func newDriveSyncer(cmd *cobra.Command, cmdCtx *CommandContext, folderID string) (*drivesync.Syncer, error) {
	auth := newDriveAuth(cmdCtx)
	svc, err := auth.Service(cmd.Context())
	if err != nil {
		return nil, err
	}
	client := drive.NewClient(svc, cmdCtx.Logger)

	id := folderID
	if id != "" {
		id, err = drive.FolderFromURL(id)
		if err != nil {
			return nil, err
		}
	}

	return drivesync.New(drivesync.Config{
		Remote:    client,
		Workspace: cmdCtx.Workspace,
		Folder:    cmdCtx.Cfg.Drive.Folder,
		FolderID:  id,
		Logger:    cmdCtx.Logger,
	})
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}

	return cmd.Start()
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
