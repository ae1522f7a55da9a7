package handler

import (
	"time"

	"github.com/blues/dcs/internal/logic"
	"github.com/blues/dcs/internal/model"
)

// DonationResponse 捐赠记录响应模型。
// displayAmount是配捐后的展示金额，用创建时快照的倍数计算
type DonationResponse struct {
	Id              int64     `json:"id"`
	Amount          string    `json:"amount"`
	DisplayAmount   string    `json:"displayAmount"`
	Frequency       string    `json:"frequency"`
	DonorName       string    `json:"donorName"`
	DonorEmail      string    `json:"donorEmail,omitempty"`
	DisplayName     string    `json:"displayName"`
	DonationMessage string    `json:"donationMessage"`
	PaymentMethod   string    `json:"paymentMethod"`
	TransactionId   string    `json:"transactionId"`
	SubscriptionId  string    `json:"subscriptionId,omitempty"`
	Status          string    `json:"status"`
	IsMatched       bool      `json:"isMatched"`
	CampaignId      int64     `json:"campaignId,omitempty"`
	NeedsReview     bool      `json:"needsReview"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PublicDonationResponse 公开页的捐赠展示，不暴露邮箱和交易信息
type PublicDonationResponse struct {
	DisplayName     string    `json:"displayName"`
	DisplayAmount   string    `json:"displayAmount"`
	DonationMessage string    `json:"donationMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// CampaignResponse 活动响应模型
type CampaignResponse struct {
	Id                 int64     `json:"id"`
	Title              string    `json:"title"`
	Slug               string    `json:"slug"`
	Description        string    `json:"description"`
	GoalAmount         string    `json:"goalAmount"`
	MatchingEnabled    bool      `json:"matchingEnabled"`
	MatchingMultiplier int       `json:"matchingMultiplier"`
	RaisedAmount       string    `json:"raisedAmount"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ToDonationResponse 将数据库模型转换为响应模型
func ToDonationResponse(donation *model.Donation) DonationResponse {
	return DonationResponse{
		Id:              donation.Id,
		Amount:          donation.Amount.StringFixed(2),
		DisplayAmount:   logic.DisplayAmount(donation).StringFixed(2),
		Frequency:       string(donation.Frequency),
		DonorName:       donation.DonorName,
		DonorEmail:      donation.DonorEmail,
		DisplayName:     donation.DisplayName,
		DonationMessage: donation.DonationMessage,
		PaymentMethod:   donation.PaymentMethod,
		TransactionId:   donation.TransactionId,
		SubscriptionId:  donation.SubscriptionId,
		Status:          string(donation.Status),
		IsMatched:       donation.IsMatched,
		CampaignId:      donation.CampaignId,
		NeedsReview:     donation.NeedsReview,
		CreatedAt:       donation.CreatedAt,
	}
}

// ToDonationResponseList 将数据库模型列表转换为响应模型列表
func ToDonationResponseList(donations []model.Donation) []DonationResponse {
	result := make([]DonationResponse, len(donations))
	for i, donation := range donations {
		result[i] = ToDonationResponse(&donation)
	}
	return result
}

// ToPublicDonationResponse 公开展示模型，匿名捐赠显示Anonymous
func ToPublicDonationResponse(donation *model.Donation) PublicDonationResponse {
	name := donation.DisplayName
	if name == "" {
		name = donation.DonorName
	}
	if name == "" {
		name = "Anonymous"
	}
	return PublicDonationResponse{
		DisplayName:     name,
		DisplayAmount:   logic.DisplayAmount(donation).StringFixed(2),
		DonationMessage: donation.DonationMessage,
		CreatedAt:       donation.CreatedAt,
	}
}

// ToPublicDonationResponseList 公开展示模型列表
func ToPublicDonationResponseList(donations []model.Donation) []PublicDonationResponse {
	result := make([]PublicDonationResponse, len(donations))
	for i, donation := range donations {
		result[i] = ToPublicDonationResponse(&donation)
	}
	return result
}

// ToCampaignResponse 将数据库模型转换为响应模型
func ToCampaignResponse(campaign *model.Campaign) CampaignResponse {
	return CampaignResponse{
		Id:                 campaign.Id,
		Title:              campaign.Title,
		Slug:               campaign.Slug,
		Description:        campaign.Description,
		GoalAmount:         campaign.GoalAmount.StringFixed(2),
		MatchingEnabled:    campaign.MatchingEnabled,
		MatchingMultiplier: campaign.MatchingMultiplier,
		RaisedAmount:       campaign.RaisedAmount.StringFixed(2),
		Active:             campaign.Active,
		CreatedAt:          campaign.CreatedAt,
		UpdatedAt:          campaign.UpdatedAt,
	}
}

// ToCampaignResponseList 将数据库模型列表转换为响应模型列表
func ToCampaignResponseList(campaigns []model.Campaign) []CampaignResponse {
	result := make([]CampaignResponse, len(campaigns))
	for i, campaign := range campaigns {
		result[i] = ToCampaignResponse(&campaign)
	}
	return result
}
