package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dkeye/cardlobby/internal/app"
	"github.com/dkeye/cardlobby/internal/app/orch"
	"github.com/dkeye/cardlobby/internal/core"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type handlers struct {
	orch *orch.Orchestrator
}

type inviteBody struct {
	InviteeID domain.UserID   `json:"invitee_id" binding:"required"`
	TableID   domain.TableID  `json:"table_id"`
	Batch     string          `json:"batch"`
	Settings  domain.Settings `json:"settings"`
}

type respondBody struct {
	Response domain.Response `json:"response" binding:"required,oneof=accepted declined"`
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err.Error())
}

// parseFilter reads the directory query: statuses=waiting,in_progress,
// network, visibility, min_fee, max_fee, q, sort and desc.
func parseFilter(c *gin.Context) (core.TableFilter, error) {
	f := core.TableFilter{
		Viewer:     currentUser(c).ID,
		Network:    c.Query("network"),
		Visibility: domain.Visibility(c.Query("visibility")),
		Query:      c.Query("q"),
		Sort:       core.TableSort(c.DefaultQuery("sort", string(core.SortCreated))),
	}
	if raw := c.Query("statuses"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := domain.TableStatus(strings.TrimSpace(s))
			if !st.Valid() {
				return f, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, s)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	for key, dst := range map[string]**decimal.Decimal{"min_fee": &f.MinFee, "max_fee": &f.MaxFee} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, key)
		}
		*dst = &d
	}
	if raw := c.Query("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: desc", domain.ErrInvalidRequest)
		}
		f.Desc = desc
	}
	switch f.Sort {
	case core.SortCreated, core.SortFee, core.SortOccupancy:
	default:
		return f, fmt.Errorf("%w: unknown sort %q", domain.ErrInvalidRequest, f.Sort)
	}
	return f, nil
}

func (h *handlers) listTables(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": h.orch.ListTables(f)})
}

func (h *handlers) createTable(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	table, err := h.orch.CreateTable(currentUser(c).ID, settings)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"table": table})
}

func (h *handlers) getTable(c *gin.Context) {
	table, err := h.orch.Table(domain.TableID(c.Param("id")), currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table.Summary(), "occupants": table.Occupants})
}

func (h *handlers) joinTable(c *gin.Context) {
	seat, err := h.orch.Join(c.Request.Context(), currentUser(c), "", domain.TableID(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seat": seat})
}

func (h *handlers) leaveTable(c *gin.Context) {
	id := domain.TableID(c.Param("id"))
	left, err := h.orch.Leave(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_id": id, "left": left})
}

func (h *handlers) startTable(c *gin.Context) {
	table, err := h.orch.StartTable(domain.TableID(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table})
}

func (h *handlers) finishTable(c *gin.Context) {
	table, err := h.orch.FinishTable(domain.TableID(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table})
}

func (h *handlers) listPeers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peers": h.orch.Peers(currentUser(c).ID)})
}

func (h *handlers) invite(c *gin.Context) {
	var body inviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	res, err := h.orch.Invite(c.Request.Context(), currentUser(c), app.InviteRequest{
		InviteeID: body.InviteeID,
		TableID:   body.TableID,
		Batch:     body.Batch,
		Settings:  body.Settings,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handlers) getInvitation(c *gin.Context) {
	inv, err := h.orch.Invitation(domain.InvitationID(c.Param("id")), currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitation": inv})
}

func (h *handlers) respond(c *gin.Context) {
	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	res, err := h.orch.Respond(c.Request.Context(), currentUser(c), "", domain.InvitationID(c.Param("id")), body.Response)
	if err != nil {
		// a failed join after acceptance still reports the resolved invitation
		status := StatusOf(err)
		c.AbortWithStatusJSON(status, gin.H{
			"error":      domain.Code(err),
			"message":    err.Error(),
			"invitation": res.Invitation,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}
