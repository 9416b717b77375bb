package pipeline

import (
	"fmt"
	"time"

	"caseflow/casefile"
	"caseflow/fees"
	"caseflow/metadata"
	"caseflow/notify"
)

// TimelineContent describes the audit entry a stage emits.
type TimelineContent struct {
	Title       string
	Description string
	ColorTag    string
	Metadata    metadata.Tree
}

// Effect is the pure description of what one stage does: the metadata patch
// to merge, an optional set-once final amount, the timeline entry, and the
// notifications to fan out. Building an Effect performs no I/O.
type Effect struct {
	Patch         metadata.Tree
	FinalAmount   *float64
	Timeline      TimelineContent
	Notifications []notify.Notification
}

// Definition binds a target status to its monotonic floors and its effect
// builder. The stage table is created once at startup and never mutated.
type Definition struct {
	Label         string
	Target        casefile.Status
	StepFloor     int
	ProgressFloor int
	Build         func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect
}

// Stages returns the full stage table in pipeline order, one definition per
// non-initial status.
func Stages(links *notify.LinkSigner) []Definition {
	return []Definition{
		{
			Label:         "admin-validation",
			Target:        casefile.StatusAdminValidated,
			StepFloor:     1,
			ProgressFloor: 10,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"validation": metadata.Map(metadata.Tree{
							"admin": metadata.Map(metadata.Tree{"validatedAt": stamp(at)}),
						}),
					},
					Timeline: TimelineContent{
						Title:       "Application validated",
						Description: "The administrative team validated the application.",
						ColorTag:    "green",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Application validated",
							"Your application passed administrative review.", notify.PriorityNormal),
						toReferrer(links, c, stk, "Referred application validated",
							fmt.Sprintf("The application you referred for %s passed administrative review.", stk.Customer.FullName),
							notify.PriorityLow),
					},
				}
			},
		},
		{
			Label:         "expert-validation",
			Target:        casefile.StatusExpertValidated,
			StepFloor:     2,
			ProgressFloor: 20,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"validation": metadata.Map(metadata.Tree{
							"expert": metadata.Map(metadata.Tree{"validatedAt": stamp(at)}),
						}),
					},
					Timeline: TimelineContent{
						Title:       "Technical review passed",
						Description: "An expert confirmed the technical eligibility of the case.",
						ColorTag:    "green",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Technical review passed",
							"An expert confirmed your case is technically eligible.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "charter-signature",
			Target:        casefile.StatusCharterSigned,
			StepFloor:     3,
			ProgressFloor: 30,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"charter": metadata.Map(metadata.Tree{"signedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Charter signed",
						Description: "All parties signed the engagement charter.",
						ColorTag:    "blue",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Charter signed",
							"The engagement charter has been signed. The audit can begin.", notify.PriorityNormal),
						toProfessional(links, c, stk, "Charter signed",
							"The engagement charter for your assigned case has been signed.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "audit-start",
			Target:        casefile.StatusAuditInProgress,
			StepFloor:     4,
			ProgressFloor: 40,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"audit": metadata.Map(metadata.Tree{"startedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Audit started",
						Description: "The on-site audit is underway.",
						ColorTag:    "blue",
					},
					Notifications: []notify.Notification{
						toProfessional(links, c, stk, "Audit started",
							"The audit phase has started for your assigned case.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "audit-completion",
			Target:        casefile.StatusAuditCompleted,
			StepFloor:     5,
			ProgressFloor: 50,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				patch := metadata.Tree{
					"audit": metadata.Map(metadata.Tree{"completedAt": stamp(at)}),
				}

				// The audited amount is fixed exactly once, from the
				// estimate the audit produced.
				var amount *float64
				if c.FinalAmount == nil {
					if raw := numberAt(c.Metadata, "audit", "estimatedAmount"); raw != nil {
						if n, ok := raw.(float64); ok {
							amount = &n
							patch["audit"] = metadata.Map(metadata.Tree{
								"completedAt": stamp(at),
								"finalAmount": metadata.Number(n),
							})
						}
					}
				}

				return Effect{
					Patch:       patch,
					FinalAmount: amount,
					Timeline: TimelineContent{
						Title:       "Audit completed",
						Description: "The audit report is available and the final amount is known.",
						ColorTag:    "green",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Audit completed",
							"Your audit is complete. The report is available in your portal.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "final-validation",
			Target:        casefile.StatusFinalValidation,
			StepFloor:     6,
			ProgressFloor: 60,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"validation": metadata.Map(metadata.Tree{
							"final": metadata.Map(metadata.Tree{"validatedAt": stamp(at)}),
						}),
					},
					Timeline: TimelineContent{
						Title:       "Final validation",
						Description: "The audit results passed final validation.",
						ColorTag:    "green",
					},
					Notifications: toAdministrators(links, c, stk, "Case ready for implementation",
						fmt.Sprintf("Case %s passed final validation and is ready for implementation.", c.ID),
						notify.PriorityNormal),
				}
			},
		},
		{
			Label:         "implementation-start",
			Target:        casefile.StatusImplementationInProgress,
			StepFloor:     7,
			ProgressFloor: 70,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"implementation": metadata.Map(metadata.Tree{"startedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Implementation started",
						Description: "The recommended works are being implemented.",
						ColorTag:    "blue",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Implementation started",
							"The works on your case have started.", notify.PriorityNormal),
						toProfessional(links, c, stk, "Implementation started",
							"Implementation is underway for your assigned case.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "implementation-validation",
			Target:        casefile.StatusImplementationValidated,
			StepFloor:     8,
			ProgressFloor: 80,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"implementation": metadata.Map(metadata.Tree{"validatedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Implementation validated",
						Description: "The completed works were inspected and validated.",
						ColorTag:    "green",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Works validated",
							"The completed works were inspected and validated.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "payment-request",
			Target:        casefile.StatusPaymentRequested,
			StepFloor:     9,
			ProgressFloor: 90,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				base := 0.0
				if c.FinalAmount != nil {
					base = *c.FinalAmount
				}
				clientFrac := fees.NormalizePercentage(numberAt(c.Metadata, "fees", "clientRate"), fees.DefaultClientFeeFraction)
				platformFrac := fees.NormalizePercentage(numberAt(c.Metadata, "fees", "platformRate"), fees.DefaultPlatformFeeFraction)
				taxRate := fees.NormalizePercentage(numberAt(c.Metadata, "fees", "taxRate"), fees.DefaultTaxRate)
				cascade := fees.ComputeCascade(base, clientFrac, platformFrac, taxRate)

				return Effect{
					Patch: metadata.Tree{
						"fees": metadata.Map(metadata.Tree{
							"requestedAt":      stamp(at),
							"stageFee":         metadata.Number(cascade.StageFee),
							"platformFeeNet":   metadata.Number(cascade.PlatformFeeNet),
							"tax":              metadata.Number(cascade.Tax),
							"platformFeeGross": metadata.Number(cascade.PlatformFeeGross),
						}),
					},
					Timeline: TimelineContent{
						Title:       "Payment requested",
						Description: fmt.Sprintf("Refund payment requested. Stage fee %.2f, platform fee %.2f incl. tax.", cascade.StageFee, cascade.PlatformFeeGross),
						ColorTag:    "amber",
						Metadata: metadata.Tree{
							"stageFee":         metadata.Number(cascade.StageFee),
							"platformFeeGross": metadata.Number(cascade.PlatformFeeGross),
						},
					},
					Notifications: toAdministrators(links, c, stk, "Payment requested",
						fmt.Sprintf("A refund payment of %.2f was requested for case %s.", cascade.StageFee, c.ID),
						notify.PriorityHigh),
				}
			},
		},
		{
			Label:         "payment-processing",
			Target:        casefile.StatusPaymentInProgress,
			StepFloor:     10,
			ProgressFloor: 95,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				return Effect{
					Patch: metadata.Tree{
						"payment": metadata.Map(metadata.Tree{"startedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Payment in progress",
						Description: "The refund payment is being processed.",
						ColorTag:    "amber",
					},
					Notifications: []notify.Notification{
						toCustomer(links, c, stk, "Payment on its way",
							"Your refund payment is being processed.", notify.PriorityNormal),
					},
				}
			},
		},
		{
			Label:         "refund-completion",
			Target:        casefile.StatusRefundCompleted,
			StepFloor:     11,
			ProgressFloor: 100,
			Build: func(c casefile.Case, stk casefile.StakeholderContext, at time.Time) Effect {
				notes := []notify.Notification{
					toCustomer(links, c, stk, "Refund completed",
						"Your refund has been paid out. The case is now closed.", notify.PriorityHigh),
					toProfessional(links, c, stk, "Case closed",
						"The refund was completed and the case is closed.", notify.PriorityNormal),
					toReferrer(links, c, stk, "Referred case closed",
						fmt.Sprintf("The case you referred for %s completed its refund.", stk.Customer.FullName),
						notify.PriorityLow),
				}
				notes = append(notes, toAdministrators(links, c, stk, "Case closed",
					fmt.Sprintf("Case %s completed its refund and is closed.", c.ID),
					notify.PriorityLow)...)

				return Effect{
					Patch: metadata.Tree{
						"payment": metadata.Map(metadata.Tree{"completedAt": stamp(at)}),
					},
					Timeline: TimelineContent{
						Title:       "Refund completed",
						Description: "The refund was paid out and the case is closed.",
						ColorTag:    "violet",
					},
					Notifications: notes,
				}
			},
		},
	}
}

func stamp(at time.Time) metadata.Value {
	return metadata.String(at.UTC().Format(time.RFC3339))
}

// numberAt returns the numeric value at the given path as an any, or nil
// when the path is absent or not a number, matching what the percentage
// normalizer expects.
func numberAt(t metadata.Tree, keys ...string) any {
	v, ok := t.Get(keys...)
	if !ok {
		return nil
	}
	if n, isNum := v.NumberOK(); isNum {
		return n
	}
	return nil
}

func caseLink(links *notify.LinkSigner, caseID, recipientID string) string {
	if links == nil {
		return ""
	}
	u, err := links.CaseURL(caseID, recipientID)
	if err != nil {
		return ""
	}
	return u
}

func toCustomer(links *notify.LinkSigner, c casefile.Case, stk casefile.StakeholderContext, title, message string, pri notify.Priority) notify.Notification {
	id := stk.Customer.ID
	return notify.Notification{
		RecipientID:   &id,
		RecipientRole: casefile.RoleCustomer,
		Title:         title,
		Message:       message,
		Priority:      pri,
		ActionURL:     caseLink(links, c.ID, id),
		Metadata:      noteMeta(c),
	}
}

func toProfessional(links *notify.LinkSigner, c casefile.Case, stk casefile.StakeholderContext, title, message string, pri notify.Priority) notify.Notification {
	n := notify.Notification{
		RecipientRole: casefile.RoleProfessional,
		Title:         title,
		Message:       message,
		Priority:      pri,
		Metadata:      noteMeta(c),
	}
	if stk.Professional != nil {
		id := stk.Professional.ID
		n.RecipientID = &id
		n.ActionURL = caseLink(links, c.ID, id)
	}
	return n
}

func toReferrer(links *notify.LinkSigner, c casefile.Case, stk casefile.StakeholderContext, title, message string, pri notify.Priority) notify.Notification {
	n := notify.Notification{
		RecipientRole: casefile.RoleReferrer,
		Title:         title,
		Message:       message,
		Priority:      pri,
		Metadata:      noteMeta(c),
	}
	if stk.Referrer != nil {
		id := stk.Referrer.ID
		n.RecipientID = &id
		n.ActionURL = caseLink(links, c.ID, id)
	}
	return n
}

func toAdministrators(links *notify.LinkSigner, c casefile.Case, stk casefile.StakeholderContext, title, message string, pri notify.Priority) []notify.Notification {
	out := make([]notify.Notification, 0, len(stk.Administrators))
	for _, admin := range stk.Administrators {
		id := admin.ID
		out = append(out, notify.Notification{
			RecipientID:   &id,
			RecipientRole: casefile.RoleAdministrator,
			Title:         title,
			Message:       message,
			Priority:      pri,
			ActionURL:     caseLink(links, c.ID, id),
			Metadata:      noteMeta(c),
		})
	}
	return out
}

func noteMeta(c casefile.Case) metadata.Tree {
	return metadata.Tree{
		"caseId": metadata.String(c.ID),
	}
}
