// Package pose adapts the external pose model's output (24 joint rotations
// plus a root translation) into global joint positions via forward
// kinematics over a fixed skeletal hierarchy.
package pose

import "gonum.org/v1/gonum/spatial/r3"

// JointCount is the number of joints in the skeletal hierarchy.
const JointCount = 24

// Joint indices in model output order.
const (
	Pelvis = iota
	LHip
	RHip
	Spine1
	LKnee
	RKnee
	Spine2
	LAnkle
	RAnkle
	Spine3
	LFoot
	RFoot
	Neck
	LCollar
	RCollar
	Head
	LShoulder
	RShoulder
	LElbow
	RElbow
	LWrist
	RWrist
	LHand
	RHand
)

// JointNames maps indices to names for logging and debug output.
var JointNames = [JointCount]string{
	"Pelvis", "L_Hip", "R_Hip", "Spine1", "L_Knee", "R_Knee", "Spine2",
	"L_Ankle", "R_Ankle", "Spine3", "L_Foot", "R_Foot", "Neck",
	"L_Collar", "R_Collar", "Head", "L_Shoulder", "R_Shoulder",
	"L_Elbow", "R_Elbow", "L_Wrist", "R_Wrist", "L_Hand", "R_Hand",
}

// parents holds each joint's parent index; -1 marks the root. The hierarchy
// is a tree, so iterating in index order always visits parents first.
var parents = [JointCount]int{
	-1, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 9, 12, 13, 14, 16, 17, 18, 19, 20, 21,
}

// restOffsets holds each joint's rest-pose offset from its parent, in meters,
// in the body frame (x=left, y=up, z=forward). Static configuration, not
// learned state.
var restOffsets = [JointCount]r3.Vec{
	Pelvis:    {},
	LHip:      {X: 0.10, Y: -0.05},
	RHip:      {X: -0.10, Y: -0.05},
	Spine1:    {Y: 0.12},
	LKnee:     {Y: -0.45},
	RKnee:     {Y: -0.45},
	Spine2:    {Y: 0.14},
	LAnkle:    {Y: -0.45},
	RAnkle:    {Y: -0.45},
	Spine3:    {Y: 0.06},
	LFoot:     {Y: -0.06, Z: 0.13},
	RFoot:     {Y: -0.06, Z: 0.13},
	Neck:      {Y: 0.22},
	LCollar:   {X: 0.08, Y: 0.12},
	RCollar:   {X: -0.08, Y: 0.12},
	Head:      {Y: 0.21},
	LShoulder: {X: 0.10},
	RShoulder: {X: -0.10},
	LElbow:    {X: 0.26},
	RElbow:    {X: -0.26},
	LWrist:    {X: 0.25},
	RWrist:    {X: -0.25},
	LHand:     {X: 0.08},
	RHand:     {X: -0.08},
}

// Parent returns the parent index of a joint, -1 for the root.
func Parent(joint int) int { return parents[joint] }

// RestOffset returns the rest-pose offset of a joint from its parent.
func RestOffset(joint int) r3.Vec { return restOffsets[joint] }
