// Package irrigation runs the automated watering loop: poll the latest
// soil moisture per device, run that device's pump when the average
// drops below a threshold, and back off between runs so a slowly rising
// reading doesn't hammer the pump.
package irrigation
