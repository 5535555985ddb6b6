// admin 为运维人员提供的命令行工具：创建用户、执行迁移、手动触发全量汇总
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"reportcard/config"
	"reportcard/internal/job"
	"reportcard/internal/model"
	"reportcard/internal/repository"
	"reportcard/internal/service"
	"reportcard/pkg/database"
	"reportcard/pkg/jwt"
	applogger "reportcard/pkg/logger"
)

// app 命令执行所需的依赖
type app struct {
	auth    service.AuthService
	summary service.SummaryService
	migrate func() error
	close   func()
}

// openApp 按配置文件装配依赖，测试中可替换
var openApp = func(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 命令行不执行后台任务，只需进程内队列满足依赖
	dispatcher := job.NewDispatcher(job.NewMemoryBroker(0, cfg.Job.ResultTTL), logger)
	svc := service.NewService(cfg, repository.NewRepository(db), jwt.NewManager(&cfg.Auth), nil, dispatcher, logger)

	return &app{
		auth:    svc.Auth,
		summary: svc.Summary,
		migrate: func() error { return database.RunMigrations(sqlDB, logger) },
		close: func() {
			_ = sqlDB.Close()
			_ = logger.Sync()
		},
	}, nil
}

// readPasswordFunc 从终端读取密码（不回显），测试中可替换
var readPasswordFunc = func() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "admin",
		Short:         "成绩单系统管理工具",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")

	root.AddCommand(
		newCreateUserCmd(&cfgPath),
		newMigrateCmd(&cfgPath),
		newRecalculateCmd(&cfgPath),
	)
	return root
}

// ────── create-user ──────

func newCreateUserCmd(cfgPath *string) *cobra.Command {
	var username, role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "创建系统用户",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role != model.RoleAdmin && role != model.RoleTeacher {
				return fmt.Errorf("角色只能是 %s 或 %s", model.RoleAdmin, model.RoleTeacher)
			}

			fmt.Fprint(cmd.ErrOrStderr(), "输入密码: ")
			password, err := readPasswordFunc()
			if err != nil {
				return fmt.Errorf("读取密码失败: %w", err)
			}
			fmt.Fprint(cmd.ErrOrStderr(), "再次输入密码: ")
			confirm, err := readPasswordFunc()
			if err != nil {
				return fmt.Errorf("读取密码失败: %w", err)
			}
			if password != confirm {
				return errors.New("两次输入的密码不一致")
			}

			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.auth.CreateUser(cmd.Context(), username, password, role)
			if err != nil {
				return fmt.Errorf("创建用户失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已创建用户 %s（%s），ID: %s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "用户名")
	cmd.Flags().StringVarP(&role, "role", "r", model.RoleTeacher, "角色：admin 或 teacher")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// ────── migrate ──────

func newMigrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "迁移完成")
			return nil
		},
	}
}

// ────── recalculate ──────

func newRecalculateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "对所有成绩单重新计算学期汇总",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := a.summary.SummarizeAll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "共 %d 个，成功 %d，失败 %d，跳过 %d，取消 %d\n", res.Total, res.Succeeded, res.Failed, res.Skipped, res.Canceled)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d 个汇总失败", res.Failed)
			}
			return nil
		},
	}
}
