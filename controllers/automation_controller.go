package controllers

import (
	"net/http"

	"schoolfee/models"
	"schoolfee/services"
	"schoolfee/utils"
	"schoolfee/workers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AutomationController struct {
	ruleService *services.RuleService
	worker      *workers.AutomationWorker
}

func NewAutomationController(ruleService *services.RuleService, worker *workers.AutomationWorker) *AutomationController {
	return &AutomationController{
		ruleService: ruleService,
		worker:      worker,
	}
}

// GetRules lists the organization's automation rules
// @Summary List automation rules
// @Tags Automation
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.AutomationRule}
// @Router /automation/rules [get]
func (ac *AutomationController) GetRules(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	rules, err := ac.ruleService.ListRules(c.Request.Context(), orgID)
	if err != nil {
		logrus.Errorf("List automation rules failed: %v", err)
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Automation rules retrieved successfully", rules, &models.MetaData{Total: int64(len(rules))})
}

// CreateRule creates an automation rule
// @Summary Create automation rule
// @Tags Automation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.CreateAutomationRuleRequest true "Rule data"
// @Success 201 {object} models.APIResponse{data=models.AutomationRule}
// @Failure 400 {object} models.APIResponse
// @Router /automation/rules [post]
func (ac *AutomationController) CreateRule(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	var req models.CreateAutomationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	rule, err := ac.ruleService.CreateRule(c.Request.Context(), orgID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Automation rule created successfully", rule)
}

// GetRule gets one automation rule
// @Summary Get automation rule
// @Tags Automation
// @Security BearerAuth
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.APIResponse{data=models.AutomationRule}
// @Failure 404 {object} models.APIResponse
// @Router /automation/rules/{id} [get]
func (ac *AutomationController) GetRule(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	rule, err := ac.ruleService.GetRule(c.Request.Context(), orgID, c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Automation rule retrieved successfully", rule)
}

// ToggleRule enables or disables a rule
// @Summary Toggle automation rule
// @Tags Automation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body models.ToggleAutomationRuleRequest true "Enabled flag"
// @Success 200 {object} models.APIResponse{data=models.AutomationRule}
// @Router /automation/rules/{id}/toggle [patch]
func (ac *AutomationController) ToggleRule(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	var req models.ToggleAutomationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	rule, err := ac.ruleService.ToggleRule(c.Request.Context(), orgID, c.Param("id"), req.Enabled)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Automation rule updated successfully", rule)
}

// @Summary List message templates
// @Tags Automation
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.MessageTemplate}
// @Router /automation/templates [get]
func (ac *AutomationController) GetTemplates(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	templates, err := ac.ruleService.ListTemplates(c.Request.Context(), orgID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Templates retrieved successfully", templates, &models.MetaData{Total: int64(len(templates))})
}

// @Summary Create message template
// @Tags Automation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.CreateTemplateRequest true "Template data"
// @Success 201 {object} models.APIResponse{data=models.MessageTemplate}
// @Router /automation/templates [post]
func (ac *AutomationController) CreateTemplate(c *gin.Context) {
	orgID := utils.GetOrganizationID(c)
	if orgID == "" {
		utils.UnauthorizedResponse(c, "Organization not resolved")
		return
	}

	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	template, err := ac.ruleService.CreateTemplate(c.Request.Context(), orgID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Template created successfully", template)
}

// PreviewTemplate renders template content against a sample recipient
// @Summary Preview message template
// @Tags Automation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.PreviewTemplateRequest true "Content and sample recipient"
// @Success 200 {object} models.APIResponse{data=services.TemplatePreview}
// @Router /automation/templates/preview [post]
func (ac *AutomationController) PreviewTemplate(c *gin.Context) {
	var req models.PreviewTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	preview, err := ac.ruleService.PreviewTemplate(req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Template rendered successfully", preview)
}

// RunNow triggers an evaluation pass (admin only)
// @Summary Run automation now
// @Tags Automation
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.EvaluationReport}
// @Failure 409 {object} models.APIResponse
// @Router /automation/run [post]
func (ac *AutomationController) RunNow(c *gin.Context) {
	report, err := ac.worker.TriggerNow(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusConflict, "An automation pass is already running", nil)
		return
	}

	logrus.WithField("user_id", utils.GetUserID(c)).Info("Automation pass triggered manually")
	utils.SuccessResponse(c, "Automation pass completed", report)
}

// @Summary Automation worker statistics
// @Tags Automation
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.APIResponse{data=workers.AutomationWorkerStats}
// @Router /automation/stats [get]
func (ac *AutomationController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "Automation stats retrieved successfully", ac.worker.GetStats())
}
