package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/config"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/repository"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string
	var owner string
	var name string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机教练及其课表, 2: 从 CSV 导入每周课表)")
	flag.IntVar(&n, "n", 5, "要插入的教练数量")
	flag.StringVar(&file, "file", "", "要导入的 CSV 文件路径")
	flag.StringVar(&owner, "owner", "", "导入课表所属教练的用户名")
	flag.StringVar(&name, "name", "导入的课表", "导入课表的名称")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("无法加载时区", "error", err)
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	if err := repository.RunMigrations(dbpool); err != nil {
		logger.Error("数据库迁移失败", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的教练数量")
			return
		}
		if err := seed.SeedRandomData(repo, cfg, n, domain.Today(loc)); err != nil {
			slog.Error("生成随机数据失败", "error", err)
			return
		}
		slog.Info("生成随机数据完成")
	case 2:
		if file == "" || owner == "" {
			slog.Error("请指定 -file 和 -owner")
			return
		}

		user, err := repo.GetUserByUsername(owner)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				slog.Error("指定的教练不存在", "username", owner)
			default:
				slog.Error("无法获取教练信息", "error", err)
			}
			return
		}

		if err := seed.ImportWeeklyCSV(repo, file, user, name); err != nil {
			slog.Error("导入课表失败", "error", err)
			return
		}
	default:
		slog.Error("指定的操作非法")
	}
}
