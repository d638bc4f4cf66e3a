package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// FloorController menerjemahkan event UI denah menjadi perintah engine
type FloorController struct {
	Floors  *services.FloorService
	Monitor *services.SyncMonitor
}

func NewFloorController(floors *services.FloorService, monitor *services.SyncMonitor) *FloorController {
	return &FloorController{Floors: floors, Monitor: monitor}
}

type positionRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

// tableView adalah meja beserta kapasitas gabungan yang ditampilkan
type tableView struct {
	models.Table
	GroupCapacity int `json:"group_capacity"`
}

type animationView struct {
	floorplan.Animation
	Progress float64 `json:"progress"`
}

// statusFor memetakan error engine ke HTTP status
func statusFor(err error) int {
	var qerr *floorplan.AdjacencyQueryError
	switch {
	case errors.Is(err, floorplan.ErrTableNotFound),
		errors.Is(err, services.ErrFloorNotFound):
		return http.StatusNotFound
	case errors.Is(err, floorplan.ErrTransitionAnimating),
		errors.Is(err, floorplan.ErrMergePending),
		errors.Is(err, floorplan.ErrNoPendingMerge),
		errors.Is(err, floorplan.ErrNotMerged),
		errors.Is(err, floorplan.ErrNoSnapshot),
		errors.Is(err, floorplan.ErrTableHidden),
		errors.Is(err, floorplan.ErrNestedMerge):
		return http.StatusConflict
	case errors.Is(err, floorplan.ErrInvalidStatus),
		errors.Is(err, floorplan.ErrInvalidMergeCandidate),
		errors.As(err, &qerr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondEngineError(c *gin.Context, err error) {
	utils.RespondError(c, statusFor(err), err)
}

// engine mengaktifkan floor dari :floor_id bila belum aktif
func (fc *FloorController) engine(c *gin.Context) (*floorplan.Engine, bool) {
	e, err := fc.Floors.Activate(c.Request.Context(), c.GetUint("floorID"))
	if err != nil {
		respondEngineError(c, err)
		return nil, false
	}
	return e, true
}

func views(e *floorplan.Engine, tables []models.Table) []tableView {
	out := make([]tableView, 0, len(tables))
	for _, t := range tables {
		capacity, err := e.GroupCapacity(t.ID)
		if err != nil {
			capacity = t.Capacity
		}
		out = append(out, tableView{Table: t, GroupCapacity: capacity})
	}
	return out
}

// ListFloors -> daftar floor sebuah restoran
func (fc *FloorController) ListFloors(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Query("restaurant_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("restaurant_id is required"))
		return
	}
	floors, err := fc.Floors.Repository().ListFloors(c.Request.Context(), uint(restaurantID))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of floors", floors)
}

// CreateFloor -> menambahkan floor baru
func (fc *FloorController) CreateFloor(c *gin.Context) {
	var req struct {
		RestaurantID uint   `json:"restaurant_id" binding:"required"`
		Name         string `json:"name" binding:"required"`
		SortOrder    int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	floor := models.Floor{RestaurantID: req.RestaurantID, Name: req.Name, SortOrder: req.SortOrder}
	if err := fc.Floors.Repository().CreateFloor(c.Request.Context(), &floor); err != nil {
		respondEngineError(c, err)
		return
	}
	utils.InfoLogger.Printf("New floor created: %s (restaurant=%d)", floor.Name, floor.RestaurantID)
	utils.RespondJSON(c, http.StatusCreated, "Floor created successfully", floor)
}

// ActivateFloor -> membuka denah sebuah floor
func (fc *FloorController) ActivateFloor(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Floor activated", gin.H{
		"floor_id": e.FloorID(),
		"tables":   views(e, e.Tables(false)),
		"phase":    e.MergeState().Phase(),
	})
}

// GetTables -> meja yang terlihat; ?all=true ikut menampilkan anak merge
func (fc *FloorController) GetTables(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	all := c.Query("all") == "true"
	utils.RespondJSON(c, http.StatusOK, "List of tables", views(e, e.Tables(all)))
}

// CreateTable -> menambahkan meja baru ke floor
func (fc *FloorController) CreateTable(c *gin.Context) {
	var req struct {
		TableNumber string  `json:"table_number" binding:"required"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
		Capacity    int     `json:"capacity" binding:"required,gt=0"`
		Status      string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		FloorID:     c.GetUint("floorID"),
		TableNumber: req.TableNumber,
		X:           req.X,
		Y:           req.Y,
		Capacity:    req.Capacity,
		Status:      req.Status,
	}
	if err := fc.Floors.CreateTable(c.Request.Context(), &table); err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// DeleteTable -> menghapus meja (dan anak merge-nya)
func (fc *FloorController) DeleteTable(c *gin.Context) {
	removed, err := fc.Floors.DeleteTable(c.Request.Context(), c.GetUint("floorID"), c.GetUint("tableID"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"table_ids": removed})
}

// UpdateTableStatus -> update status meja
func (fc *FloorController) UpdateTableStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	table, err := e.UpdateStatus(c.Request.Context(), c.GetUint("tableID"), body.Status)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// GetAdjacent -> meja yang bersebelahan dengan posisi meja saat ini
func (fc *FloorController) GetAdjacent(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	adjacent, err := e.Adjacent(c.GetUint("tableID"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Adjacent tables", gin.H{"table_ids": adjacent})
}

func (fc *FloorController) BeginDrag(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	tableID := c.GetUint("tableID")
	if err := e.BeginDrag(tableID); err != nil {
		respondEngineError(c, err)
		return
	}
	table, _ := e.Table(tableID)
	utils.RespondJSON(c, http.StatusOK, "Drag started", table)
}

func (fc *FloorController) MoveDrag(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	table, err := e.MoveDrag(c.GetUint("tableID"), *req.X, *req.Y)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table moved", table)
}

// EndDrag -> meja dilepas; jika bersebelahan dengan meja lain, proposal
// merge dibuka dan menunggu konfirmasi
func (fc *FloorController) EndDrag(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	drop, err := e.EndDrag(c.GetUint("tableID"), *req.X, *req.Y)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	message := "Table dropped"
	if drop.Pending != nil {
		message = "Merge proposal awaiting confirmation"
	}
	utils.RespondJSON(c, http.StatusOK, message, drop)
}

func (fc *FloorController) RollbackDrag(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	table, err := e.RollbackDrag(c.GetUint("tableID"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Drag rolled back", table)
}

// GetMergeState -> state merge floor saat ini
func (fc *FloorController) GetMergeState(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	state := e.MergeState()
	utils.RespondJSON(c, http.StatusOK, "Merge state", gin.H{
		"phase": state.Phase(),
		"state": state,
	})
}

func (fc *FloorController) ConfirmMerge(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	result, err := e.ConfirmMerge(c.Request.Context())
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables merged", result)
}

func (fc *FloorController) CancelMerge(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	pending, err := e.CancelMerge()
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Merge cancelled", pending)
}

func (fc *FloorController) UnmergeTable(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	result, err := e.Unmerge(c.Request.Context(), c.GetUint("tableID"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables unmerged", result)
}

// GetAnimations -> animasi merge/unmerge yang sedang berjalan
func (fc *FloorController) GetAnimations(c *gin.Context) {
	e, ok := fc.engine(c)
	if !ok {
		return
	}
	now := time.Now()
	anims := e.Animations()
	out := make([]animationView, 0, len(anims))
	for _, a := range anims {
		out = append(out, animationView{Animation: a, Progress: a.Progress(now)})
	}
	utils.RespondJSON(c, http.StatusOK, "Active animations", out)
}

// GetSyncMetrics -> metrik sinkronisasi dan antrian retry
func (fc *FloorController) GetSyncMetrics(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Sync metrics", gin.H{
		"metrics":       fc.Monitor.GetMetrics(),
		"pending":       fc.Monitor.Pending(),
		"active_floors": fc.Floors.ActiveFloors(),
	})
}
