package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/data/session"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/paper_trading_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/paper_trading_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/paper_trading_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/quote", b.ctrl.InitQuote)
	b.bot.Handle("/buy", b.ctrl.InitBuy)
	b.bot.Handle("/sell", b.ctrl.InitSell)
	b.bot.Handle("/deposit", b.ctrl.InitDeposit)
	b.bot.Handle("/portfolio", b.ctrl.Portfolio)
	b.bot.Handle("/balance", b.ctrl.Balance)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/report", b.ctrl.Report)

	// free text lands on whichever input the dialog is waiting for
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later...")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingQuoteTicker:
			return b.ctrl.ProcessQuote(c)
		case model.ExpectingBuyTicker:
			return b.ctrl.ProcessBuyTicker(c)
		case model.ExpectingBuyQuantity:
			return b.ctrl.ProcessBuyQuantity(c)
		case model.ExpectingSellTicker:
			return b.ctrl.ProcessSellTicker(c)
		case model.ExpectingSellQuantity:
			return b.ctrl.ProcessSellQuantity(c)
		case model.ExpectingDepositAmount:
			return b.ctrl.ProcessDeposit(c)
		default:
			return c.Send("Pick a command first: /quote /buy /sell /deposit /portfolio /balance /history /report")
		}
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		defer func() {
			_ = c.Respond()
		}()

		data := strings.TrimPrefix(strings.TrimSpace(c.Callback().Data), "\f")

		if ticker, ok := strings.CutPrefix(data, tgCallback.SellTickerPrefix); ok {
			return b.ctrl.ProcessSellTickerCallback(c, ticker)
		}

		switch data {
		case tgCallback.Quote:
			return b.ctrl.InitQuote(c)
		case tgCallback.Buy:
			return b.ctrl.InitBuy(c)
		case tgCallback.Sell:
			return b.ctrl.InitSell(c)
		case tgCallback.Deposit:
			return b.ctrl.InitDeposit(c)
		case tgCallback.Portfolio:
			return b.ctrl.Portfolio(c)
		case tgCallback.History:
			return b.ctrl.History(c)
		case tgCallback.Report:
			return b.ctrl.Report(c)
		default:
			slog.Error("unexpected callback data", slog.String("rqID", rqID), slog.String("data", data))
			return nil
		}
	})
}
