package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/middlewares"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type floorFixture struct {
	router  *gin.Engine
	floors  *services.FloorService
	db      *gorm.DB
	floorID uint
}

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// setupFloorRouter menyiapkan DB in-memory dengan satu floor berisi meja A1
// (400,400), B1 (160,100) dan C1 (700,100)
func setupFloorRouter(t *testing.T) *floorFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Floor{}, &models.Table{}))

	floor := models.Floor{RestaurantID: 7, Name: "Ground"}
	require.NoError(t, db.Create(&floor).Error)
	for _, tbl := range []models.Table{
		{ID: 1, TableNumber: "A1", X: 400, Y: 400, Capacity: 2},
		{ID: 2, TableNumber: "B1", X: 160, Y: 100, Capacity: 4},
		{ID: 3, TableNumber: "C1", X: 700, Y: 100, Capacity: 6},
	} {
		tbl.RestaurantID = floor.RestaurantID
		tbl.FloorID = floor.ID
		tbl.Status = models.TableStatusAvailable
		require.NoError(t, db.Create(&tbl).Error)
	}

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	monitor := services.NewSyncMonitor(3)
	floors := services.NewFloorService(services.NewTableRepository(db), floorplan.Options{
		Debounce:          20 * time.Millisecond,
		AnimationDuration: 100 * time.Millisecond,
		Logger:            quiet,
		OnFailure:         monitor.Report,
	})
	t.Cleanup(floors.Close)

	fc := NewFloorController(floors, monitor)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("role", models.RoleStaff)
		c.Set("userID", uint(1))
		c.Next()
	})
	r.Use(middlewares.FloorParams())

	r.GET("/floors", fc.ListFloors)
	r.POST("/floors", fc.CreateFloor)
	r.POST("/floors/:floor_id/activate", fc.ActivateFloor)
	r.GET("/floors/:floor_id/tables", fc.GetTables)
	r.POST("/floors/:floor_id/tables", fc.CreateTable)
	r.DELETE("/floors/:floor_id/tables/:table_id", fc.DeleteTable)
	r.PATCH("/floors/:floor_id/tables/:table_id/status", fc.UpdateTableStatus)
	r.GET("/floors/:floor_id/tables/:table_id/adjacent", fc.GetAdjacent)
	r.POST("/floors/:floor_id/tables/:table_id/drag/begin", fc.BeginDrag)
	r.POST("/floors/:floor_id/tables/:table_id/drag/move", fc.MoveDrag)
	r.POST("/floors/:floor_id/tables/:table_id/drag/end", fc.EndDrag)
	r.POST("/floors/:floor_id/tables/:table_id/drag/rollback", fc.RollbackDrag)
	r.GET("/floors/:floor_id/merge", fc.GetMergeState)
	r.POST("/floors/:floor_id/merge/confirm", fc.ConfirmMerge)
	r.POST("/floors/:floor_id/merge/cancel", fc.CancelMerge)
	r.POST("/floors/:floor_id/tables/:table_id/unmerge", fc.UnmergeTable)
	r.GET("/floors/:floor_id/animations", fc.GetAnimations)
	r.GET("/sync/metrics", fc.GetSyncMetrics)

	return &floorFixture{router: r, floors: floors, db: db, floorID: floor.ID}
}

func (f *floorFixture) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (f *floorFixture) path(format string, args ...interface{}) string {
	return fmt.Sprintf("/floors/%d", f.floorID) + fmt.Sprintf(format, args...)
}

func TestFloorController_ListAndActivate(t *testing.T) {
	f := setupFloorRouter(t)

	code, resp := f.do(t, http.MethodGet, "/floors?restaurant_id=7", nil)
	require.Equal(t, http.StatusOK, code)
	var floors []models.Floor
	require.NoError(t, json.Unmarshal(resp.Data, &floors))
	assert.Len(t, floors, 1)

	code, _ = f.do(t, http.MethodGet, "/floors", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = f.do(t, http.MethodPost, f.path("/activate"), nil)
	require.Equal(t, http.StatusOK, code)
	var activated struct {
		FloorID uint        `json:"floor_id"`
		Tables  []tableView `json:"tables"`
		Phase   string      `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &activated))
	assert.Equal(t, f.floorID, activated.FloorID)
	assert.Len(t, activated.Tables, 3)
	assert.Equal(t, "idle", activated.Phase)

	code, _ = f.do(t, http.MethodPost, "/floors/404/activate", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/floors/abc/activate", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFloorController_CreateFloor(t *testing.T) {
	f := setupFloorRouter(t)

	code, resp := f.do(t, http.MethodPost, "/floors", map[string]interface{}{
		"restaurant_id": 7, "name": "Rooftop", "sort_order": 2,
	})
	require.Equal(t, http.StatusCreated, code)
	var floor models.Floor
	require.NoError(t, json.Unmarshal(resp.Data, &floor))
	assert.NotZero(t, floor.ID)
	assert.Equal(t, "Rooftop", floor.Name)

	code, _ = f.do(t, http.MethodPost, "/floors", map[string]interface{}{"name": "No restaurant"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFloorController_DragMergeUnmerge(t *testing.T) {
	f := setupFloorRouter(t)

	code, _ := f.do(t, http.MethodPost, f.path("/tables/1/drag/begin"), nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := f.do(t, http.MethodPost, f.path("/tables/1/drag/move"), map[string]float64{"x": 250, "y": 250})
	require.Equal(t, http.StatusOK, code)
	var moved models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &moved))
	assert.Equal(t, 250.0, moved.X)

	code, resp = f.do(t, http.MethodPost, f.path("/tables/1/drag/end"), map[string]float64{"x": 100, "y": 100})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Merge proposal awaiting confirmation", resp.Message)
	var drop floorplan.DropResult
	require.NoError(t, json.Unmarshal(resp.Data, &drop))
	require.NotNil(t, drop.Pending)
	assert.Equal(t, []uint{2, 1}, drop.Pending.Group)
	assert.Equal(t, []uint{2}, drop.Adjacent)

	code, resp = f.do(t, http.MethodGet, f.path("/merge"), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"phase":"adjacent_pending"`)

	code, resp = f.do(t, http.MethodPost, f.path("/merge/confirm"), nil)
	require.Equal(t, http.StatusOK, code)
	var merged floorplan.MergeResult
	require.NoError(t, json.Unmarshal(resp.Data, &merged))
	assert.Equal(t, uint(2), merged.Parent.ID)
	assert.Equal(t, []uint{1}, merged.ChildIDs)

	code, resp = f.do(t, http.MethodGet, f.path("/tables"), nil)
	require.Equal(t, http.StatusOK, code)
	var visible []tableView
	require.NoError(t, json.Unmarshal(resp.Data, &visible))
	require.Len(t, visible, 2)
	assert.Equal(t, uint(2), visible[0].ID)
	assert.Equal(t, 6, visible[0].GroupCapacity)

	code, resp = f.do(t, http.MethodGet, f.path("/tables?all=true"), nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &visible))
	assert.Len(t, visible, 3)

	// Merge sampai ke database
	require.Eventually(t, func() bool {
		var child models.Table
		f.db.First(&child, 1)
		return child.IsHidden && child.ParentTableID != nil && *child.ParentTableID == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Tunggu animasi merge selesai sebelum unmerge
	require.Eventually(t, func() bool {
		_, resp := f.do(t, http.MethodGet, f.path("/animations"), nil)
		return string(resp.Data) == "[]"
	}, 2*time.Second, 10*time.Millisecond)

	code, resp = f.do(t, http.MethodPost, f.path("/tables/2/unmerge"), nil)
	require.Equal(t, http.StatusOK, code)
	var unmerged floorplan.UnmergeResult
	require.NoError(t, json.Unmarshal(resp.Data, &unmerged))
	require.Len(t, unmerged.Children, 1)
	assert.Equal(t, 400.0, unmerged.Children[0].X)
	assert.Equal(t, 400.0, unmerged.Children[0].Y)

	code, _ = f.do(t, http.MethodPost, f.path("/tables/2/unmerge"), nil)
	assert.Equal(t, http.StatusConflict, code)

	require.Eventually(t, func() bool {
		var child models.Table
		f.db.First(&child, 1)
		return !child.IsHidden && child.ParentTableID == nil && child.X == 400
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFloorController_CancelAndRollback(t *testing.T) {
	f := setupFloorRouter(t)

	code, _ := f.do(t, http.MethodPost, f.path("/merge/cancel"), nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, http.MethodPost, f.path("/tables/1/drag/rollback"), nil)
	assert.Equal(t, http.StatusConflict, code)

	f.do(t, http.MethodPost, f.path("/tables/1/drag/begin"), nil)
	code, _ = f.do(t, http.MethodPost, f.path("/tables/1/drag/end"), map[string]float64{"x": 100, "y": 100})
	require.Equal(t, http.StatusOK, code)

	// Drag lain ditolak selama proposal terbuka
	code, _ = f.do(t, http.MethodPost, f.path("/tables/3/drag/begin"), nil)
	assert.Equal(t, http.StatusConflict, code)

	code, resp := f.do(t, http.MethodPost, f.path("/merge/cancel"), nil)
	require.Equal(t, http.StatusOK, code)
	var pending floorplan.PendingState
	require.NoError(t, json.Unmarshal(resp.Data, &pending))
	assert.Equal(t, uint(1), pending.DraggedID)

	code, resp = f.do(t, http.MethodGet, f.path("/tables"), nil)
	require.Equal(t, http.StatusOK, code)
	var tables []tableView
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Equal(t, 400.0, tables[0].X)
	assert.Equal(t, 400.0, tables[0].Y)

	// Rollback mengembalikan posisi awal drag
	f.do(t, http.MethodPost, f.path("/tables/3/drag/begin"), nil)
	f.do(t, http.MethodPost, f.path("/tables/3/drag/move"), map[string]float64{"x": 900, "y": 900})
	code, resp = f.do(t, http.MethodPost, f.path("/tables/3/drag/rollback"), nil)
	require.Equal(t, http.StatusOK, code)
	var restored models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &restored))
	assert.Equal(t, 700.0, restored.X)
	assert.Equal(t, 100.0, restored.Y)
}

func TestFloorController_StatusAndAdjacency(t *testing.T) {
	f := setupFloorRouter(t)

	code, resp := f.do(t, http.MethodPatch, f.path("/tables/3/status"), map[string]string{"status": models.TableStatusOccupied})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Table status updated", resp.Message)

	code, _ = f.do(t, http.MethodPatch, f.path("/tables/3/status"), map[string]string{"status": "dirty"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPatch, f.path("/tables/99/status"), map[string]string{"status": models.TableStatusOccupied})
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = f.do(t, http.MethodGet, f.path("/tables/2/adjacent"), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"table_ids":[]}`, string(resp.Data))

	code, _ = f.do(t, http.MethodPost, f.path("/tables/1/drag/move"), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	require.Eventually(t, func() bool {
		var tbl models.Table
		f.db.First(&tbl, 3)
		return tbl.Status == models.TableStatusOccupied
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFloorController_CreateAndDeleteTable(t *testing.T) {
	f := setupFloorRouter(t)
	f.do(t, http.MethodPost, f.path("/activate"), nil)

	code, resp := f.do(t, http.MethodPost, f.path("/tables"), map[string]interface{}{
		"table_number": "D1", "x": 220, "y": 100, "capacity": 2,
	})
	require.Equal(t, http.StatusCreated, code)
	var created models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, models.TableStatusAvailable, created.Status)

	code, resp = f.do(t, http.MethodGet, f.path("/tables/%d/adjacent", created.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"table_ids":[2]}`, string(resp.Data))

	code, _ = f.do(t, http.MethodPost, f.path("/tables"), map[string]interface{}{"table_number": "E1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = f.do(t, http.MethodDelete, f.path("/tables/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, fmt.Sprintf(`{"table_ids":[%d]}`, created.ID), string(resp.Data))

	code, _ = f.do(t, http.MethodDelete, f.path("/tables/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFloorController_SyncMetrics(t *testing.T) {
	f := setupFloorRouter(t)
	f.do(t, http.MethodPost, f.path("/activate"), nil)

	code, resp := f.do(t, http.MethodGet, "/sync/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Metrics      services.SyncMetrics `json:"metrics"`
		Pending      []services.RetryJob  `json:"pending"`
		ActiveFloors []uint               `json:"active_floors"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Zero(t, body.Metrics.TotalFailures)
	assert.Empty(t, body.Pending)
	assert.Equal(t, []uint{f.floorID}, body.ActiveFloors)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"table not found", fmt.Errorf("get: %w", floorplan.ErrTableNotFound), http.StatusNotFound},
		{"floor not found", services.ErrFloorNotFound, http.StatusNotFound},
		{"animating", floorplan.ErrTransitionAnimating, http.StatusConflict},
		{"pending", floorplan.ErrMergePending, http.StatusConflict},
		{"no snapshot", floorplan.ErrNoSnapshot, http.StatusConflict},
		{"hidden", floorplan.ErrTableHidden, http.StatusConflict},
		{"invalid status", floorplan.ErrInvalidStatus, http.StatusBadRequest},
		{"adjacency query", &floorplan.AdjacencyQueryError{Reason: "nan"}, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
