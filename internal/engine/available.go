package engine

import (
	"context"

	"plenum/internal/motion"
)

// AvailableMotions returns the motion types the actor could offer right
// now, mapped to display names. Each enabled type's own in-order rule
// decides; privilege-gated types exclude themselves through that rule.
func (e Engine) AvailableMotions(ctx context.Context, actorID, meetingID string, groupID int64) (map[string]string, error) {
	immediate, err := e.ImmediatePending(ctx, meetingID, groupID)
	if err != nil {
		return nil, err
	}
	env := e.dbEnv()
	var inst *motion.Instance
	if immediate != nil {
		inst, err = motion.NewInstance(*immediate, env, e.Config)
		if err != nil {
			return nil, err
		}
	}
	ord := motion.Ordering{
		MeetingID: meetingID,
		GroupID:   groupID,
		ActorID:   actorID,
		Config:    e.Config,
		Env:       env,
	}
	res := map[string]string{}
	for _, p := range motion.All() {
		if e.Config != nil && !e.Config.TypeEnabled(p.Name()) {
			continue
		}
		ok, err := p.InOrder(ctx, ord, inst)
		if err != nil {
			return nil, err
		}
		if ok {
			res[p.Name()] = p.DisplayName()
		}
	}
	return res, nil
}
