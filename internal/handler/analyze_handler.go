package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"muichiro-nexus/internal/service"
	"muichiro-nexus/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AnalyzeHandler triggers AI analysis of a stored file.
type AnalyzeHandler struct {
	analysisService service.AnalysisService
}

func NewAnalyzeHandler(analysisService service.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{analysisService: analysisService}
}

func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	metadata, err := h.analysisService.Analyze(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		log.Errorf("[AnalyzeHandler] analysis of %s failed: %v", c.Param("id"), err)
		respondServiceError(c, err)
		return
	}
	respondOK(c, "File analyzed successfully", gin.H{"metadata": metadata})
}

// Stream upgrades to a websocket, forwards model output as text frames and
// ends with a completion or error frame.
func (h *AnalyzeHandler) Stream(c *gin.Context) {
	user := currentUser(c)
	fileID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("[AnalyzeHandler] websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	metadata, err := h.analysisService.AnalyzeStream(c.Request.Context(), user.ID, fileID, conn)
	if err != nil {
		log.Errorf("[AnalyzeHandler] streaming analysis of %s failed: %v", fileID, err)
		writeFrame(conn, gin.H{"type": "error", "message": err.Error(), "timestamp": time.Now().UnixMilli()})
		return
	}
	writeFrame(conn, gin.H{"type": "completion", "status": "finished", "metadata": metadata, "timestamp": time.Now().UnixMilli()})
}

func writeFrame(conn *websocket.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
