// Package server exposes the game engine over gRPC and websocket commands.
package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/chat"
	"github.com/boardtycoon/tycoon-server-go/internal/engine"
	"github.com/boardtycoon/tycoon-server-go/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/boardtycoon/tycoon-server-go/internal/server"
	spanPrefix = "tycoon.command/"
)

type commandFunc func(ctx context.Context, args map[string]any) (any, error)

type command struct {
	run   commandFunc
	admin bool
}

// Dispatcher maps command names onto engine and chat operations. Both the
// gRPC service and websocket command frames go through it.
type Dispatcher struct {
	engine   *engine.Engine
	chat     *chat.Manager
	logger   *zap.Logger
	tracer   trace.Tracer
	commands map[string]command
}

var _ broadcast.CommandHandler = (*Dispatcher)(nil)

// NewDispatcher builds the command table for eng and rooms.
func NewDispatcher(eng *engine.Engine, rooms *chat.Manager, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		engine: eng,
		chat:   rooms,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	d.commands = map[string]command{
		"createGame":    {run: d.createGame},
		"joinGame":      {run: d.joinGame},
		"leaveGame":     {run: d.leaveGame},
		"surrender":     {run: d.surrender},
		"deleteGame":    {run: d.deleteGame, admin: true},
		"listGames":     {run: d.listGames},
		"getGame":       {run: d.getGame},
		"gameStatus":    {run: d.gameStatus},
		"watchGame":     {run: d.watchGame},
		"propertyOwner": {run: d.propertyOwner},
		"saveGameState": {run: d.saveGameState},
		"gameState":     {run: d.gameState},

		"endTurn":     {run: d.endTurn},
		"movePlayer":  {run: d.movePlayer},
		"landOnField": {run: d.landOnField},
		"payRent":     {run: d.payRent},
		"payMoney":    {run: d.payMoney},
		"playCasino":  {run: d.playCasino},

		"buyProperty":        {run: d.propertyCommand(eng.BuyProperty)},
		"buyOffice":          {run: d.propertyCommand(eng.BuyOffice)},
		"sellOffice":         {run: d.propertyCommand(eng.SellOffice)},
		"mortgageProperty":   {run: d.propertyCommand(eng.MortgageProperty)},
		"unmortgageProperty": {run: d.propertyCommand(eng.UnmortgageProperty)},

		"startAuction":  {run: d.startAuction},
		"placeBid":      {run: d.placeBid},
		"auction":       {run: d.auction},
		"settleAuction": {run: d.settleAuction, admin: true},

		"proposeContract": {run: d.proposeContract},
		"acceptContract":  {run: d.acceptContract},

		"sendMessage": {run: d.sendMessage},
		"chatHistory": {run: d.chatHistory},
	}
	return d
}

// HandleCommand runs one command and renders its result as a JSON object.
func (d *Dispatcher) HandleCommand(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	cmd, ok := d.commands[name]
	if !ok {
		return nil, apperrors.InvalidArgument("unknown command %q", name)
	}

	gameID, _ := args["gameId"].(string)
	ctx, span := d.tracer.Start(ctx, spanPrefix+name, trace.WithAttributes(
		attribute.String("command", name),
		attribute.String("game.id", gameID),
	))
	defer span.End()

	result, err := d.run(ctx, cmd, args)
	if err == nil {
		var out map[string]any
		out, err = toMap(result)
		if err == nil {
			return out, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(otelcodes.Error, string(apperrors.GetCode(err)))

	fields := []zap.Field{
		zap.String("command", name),
		zap.String("game_id", gameID),
		zap.Error(err),
	}
	if apperrors.KindOf(err) == apperrors.KindInternal {
		d.logger.Error("command failed", fields...)
	} else {
		d.logger.Warn("command rejected", fields...)
	}
	return nil, err
}

func (d *Dispatcher) run(ctx context.Context, cmd command, args map[string]any) (any, error) {
	if cmd.admin && !IsAdmin(ctx) {
		return nil, apperrors.PermissionDenied("admin credentials required")
	}
	if args == nil {
		args = map[string]any{}
	}
	return cmd.run(ctx, args)
}

// toMap renders a command result through its JSON form.
func toMap(result any) (map[string]any, error) {
	if result == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.Internal("encode result", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Internal("result is not an object", err)
	}
	return out, nil
}

type validator interface {
	validate() error
}

// bind decodes command arguments into dst and validates it.
func bind(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return apperrors.InvalidArgument("malformed arguments")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.InvalidArgument("malformed arguments: %v", err)
	}
	if v, ok := dst.(validator); ok {
		return v.validate()
	}
	return nil
}

func required(name string, value *string) error {
	*value = strings.TrimSpace(*value)
	if *value == "" {
		return apperrors.InvalidArgument("%s is required", name)
	}
	return nil
}

type gameRequest struct {
	GameID string `json:"gameId"`
}

func (r *gameRequest) validate() error {
	return required("gameId", &r.GameID)
}

type playerRequest struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

func (r *playerRequest) validate() error {
	if err := required("gameId", &r.GameID); err != nil {
		return err
	}
	return required("username", &r.Username)
}

type propertyRequest struct {
	playerRequest
	Property string `json:"property"`
}

func (r *propertyRequest) validate() error {
	if err := r.playerRequest.validate(); err != nil {
		return err
	}
	return required("property", &r.Property)
}

func (d *Dispatcher) createGame(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		Username   string `json:"username"`
		GameName   string `json:"gameName"`
		MaxPlayers int    `json:"maxPlayers"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	if err := required("username", &req.Username); err != nil {
		return nil, err
	}
	view, err := d.engine.CreateGame(ctx, req.Username, req.GameName, req.MaxPlayers)
	if err != nil {
		return nil, err
	}
	d.notice(ctx, view.GameID, req.Username, d.chat.JoinRoom)
	return view, nil
}

func (d *Dispatcher) joinGame(ctx context.Context, args map[string]any) (any, error) {
	var req playerRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	view, err := d.engine.JoinGame(ctx, req.GameID, req.Username)
	if err != nil {
		return nil, err
	}
	d.notice(ctx, req.GameID, req.Username, d.chat.JoinRoom)
	return view, nil
}

type leaveFunc func(ctx context.Context, gameID, username string) (*engine.LeaveResult, error)

func (d *Dispatcher) leave(ctx context.Context, args map[string]any, op leaveFunc) (any, error) {
	var req playerRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	result, err := op(ctx, req.GameID, req.Username)
	if err != nil {
		return nil, err
	}
	if !result.GameRemoved {
		d.notice(ctx, req.GameID, req.Username, d.chat.LeaveRoom)
	}
	return result, nil
}

func (d *Dispatcher) leaveGame(ctx context.Context, args map[string]any) (any, error) {
	return d.leave(ctx, args, d.engine.LeaveGame)
}

func (d *Dispatcher) surrender(ctx context.Context, args map[string]any) (any, error) {
	return d.leave(ctx, args, d.engine.Surrender)
}

// notice posts a join or leave line to the game's chat. The command has
// already been applied, so a failure is only logged.
func (d *Dispatcher) notice(ctx context.Context, gameID, username string, post func(ctx context.Context, gameID, username string) error) {
	if err := post(ctx, gameID, username); err != nil {
		d.logger.Warn("chat notice not posted",
			zap.String("game_id", gameID),
			zap.String("username", username),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) deleteGame(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	if err := d.engine.DeleteGame(ctx, req.GameID); err != nil {
		return nil, err
	}
	return map[string]any{"gameId": req.GameID, "deleted": true}, nil
}

func (d *Dispatcher) listGames(ctx context.Context, _ map[string]any) (any, error) {
	games, err := d.engine.ListOpenGames(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"games": games}, nil
}

func (d *Dispatcher) getGame(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.GetGame(ctx, req.GameID)
}

func (d *Dispatcher) gameStatus(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.GameStatus(ctx, req.GameID)
}

func (d *Dispatcher) watchGame(ctx context.Context, args map[string]any) (any, error) {
	var req playerRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.AddSpectator(ctx, req.GameID, req.Username)
}

func (d *Dispatcher) propertyOwner(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		gameRequest
		Position int `json:"position"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.PropertyOwner(ctx, req.GameID, req.Position)
}

func (d *Dispatcher) saveGameState(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		gameRequest
		State string `json:"state"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	if err := d.engine.SaveGameState(ctx, req.GameID, req.State); err != nil {
		return nil, err
	}
	return map[string]any{"gameId": req.GameID, "saved": true}, nil
}

func (d *Dispatcher) gameState(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	state, err := d.engine.GameState(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"gameId": req.GameID, "state": state}, nil
}

func (d *Dispatcher) endTurn(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.EndTurn(ctx, req.GameID)
}

func (d *Dispatcher) movePlayer(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		playerRequest
		Position int     `json:"newPosition"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Final    bool    `json:"isFinalPosition"`
		Start    bool    `json:"isStartPosition"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.MovePlayer(ctx, engine.Move{
		GameID:   req.GameID,
		Username: req.Username,
		Position: req.Position,
		Coords:   model.Coords{X: req.X, Y: req.Y},
		Final:    req.Final,
		Start:    req.Start,
	})
}

func (d *Dispatcher) landOnField(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		playerRequest
		Field string `json:"field"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	if err := required("field", &req.Field); err != nil {
		return nil, err
	}
	return d.engine.LandOnField(ctx, req.GameID, req.Username, req.Field)
}

func (d *Dispatcher) payRent(ctx context.Context, args map[string]any) (any, error) {
	var req playerRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.PayRent(ctx, req.GameID, req.Username)
}

func (d *Dispatcher) payMoney(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		playerRequest
		Amount int `json:"amount"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.PayMoney(ctx, req.GameID, req.Username, req.Amount)
}

func (d *Dispatcher) playCasino(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		playerRequest
		Bet     int   `json:"bet"`
		Numbers []int `json:"numbers"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.PlayCasino(ctx, req.GameID, req.Username, req.Bet, req.Numbers)
}

type propertyOp func(ctx context.Context, gameID, username, propertyName string) (*engine.PropertyResult, error)

func (d *Dispatcher) propertyCommand(op propertyOp) commandFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var req propertyRequest
		if err := bind(args, &req); err != nil {
			return nil, err
		}
		return op(ctx, req.GameID, req.Username, req.Property)
	}
}

func (d *Dispatcher) startAuction(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		propertyRequest
		InitialBid int `json:"initialBid"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.StartAuction(ctx, req.GameID, req.Username, req.Property, req.InitialBid)
}

func (d *Dispatcher) placeBid(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		playerRequest
		Amount int `json:"amount"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.PlaceBid(ctx, req.GameID, req.Username, req.Amount)
}

func (d *Dispatcher) auction(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.Auction(ctx, req.GameID)
}

func (d *Dispatcher) settleAuction(ctx context.Context, args map[string]any) (any, error) {
	var req gameRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.SettleAuction(ctx, req.GameID)
}

type contractRequest struct {
	GameID   string          `json:"gameId"`
	Contract engine.Contract `json:"contract"`
}

func (r *contractRequest) validate() error {
	return required("gameId", &r.GameID)
}

func (d *Dispatcher) proposeContract(ctx context.Context, args map[string]any) (any, error) {
	var req contractRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.ProposeContract(ctx, req.GameID, req.Contract)
}

func (d *Dispatcher) acceptContract(ctx context.Context, args map[string]any) (any, error) {
	var req contractRequest
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.engine.AcceptContract(ctx, req.GameID, req.Contract)
}

func (d *Dispatcher) sendMessage(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		GameID   string `json:"gameId"`
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	return d.chat.SendMessage(ctx, req.GameID, req.Username, req.Message)
}

func (d *Dispatcher) chatHistory(ctx context.Context, args map[string]any) (any, error) {
	var req struct {
		GameID string `json:"gameId"`
		Limit  int    `json:"limit"`
	}
	if err := bind(args, &req); err != nil {
		return nil, err
	}
	messages, err := d.chat.History(ctx, req.GameID, req.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"gameId": req.GameID, "messages": messages}, nil
}
